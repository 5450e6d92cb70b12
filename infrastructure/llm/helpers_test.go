package llm

import (
	"sync"
	"time"
)

// recordingMetrics captures observations keyed by metric name.
type recordingMetrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
	labels     map[string][]map[string]string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
		labels:     make(map[string][]map[string]string),
	}
}

func (r *recordingMetrics) RecordLatency(op string, d time.Duration, labels map[string]string) {
	r.RecordHistogram(op, d.Seconds(), labels)
}

func (r *recordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += value
	r.labels[metric] = append(r.labels[metric], labels)
}

func (r *recordingMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	r.RecordCounter(metric, value, labels)
}

func (r *recordingMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric] = append(r.histograms[metric], value)
	r.labels[metric] = append(r.labels[metric], labels)
}
