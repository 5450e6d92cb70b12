package testutils

import (
	"sync"
	"time"

	"github.com/ahrav/shinise-scout/internal/ports"
)

// RecordingMetrics keeps every observation in memory.
type RecordingMetrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
	labels     map[string][]map[string]string
}

var _ ports.MetricsCollector = (*RecordingMetrics)(nil)

// NewRecordingMetrics returns an empty recorder.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
		labels:     make(map[string][]map[string]string),
	}
}

func (r *RecordingMetrics) RecordLatency(op string, d time.Duration, labels map[string]string) {
	r.RecordHistogram(op, d.Seconds(), labels)
}

func (r *RecordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += value
	r.labels[metric] = append(r.labels[metric], labels)
}

func (r *RecordingMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] = value
	r.labels[metric] = append(r.labels[metric], labels)
}

func (r *RecordingMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric] = append(r.histograms[metric], value)
	r.labels[metric] = append(r.labels[metric], labels)
}

// Counter returns the accumulated value of a counter.
func (r *RecordingMetrics) Counter(metric string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[metric]
}

// CounterWith sums the increments of metric whose labels include every
// pair in match.
func (r *RecordingMetrics) CounterWith(metric string, match map[string]string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.labels[metric] {
		ok := true
		for k, v := range match {
			if l[k] != v {
				ok = false
				break
			}
		}
		if ok {
			n++
		}
	}
	return n
}

// Observations returns the histogram samples of metric.
func (r *RecordingMetrics) Observations(metric string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.histograms[metric]...)
}
