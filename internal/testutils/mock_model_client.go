// Package testutils provides deterministic collaborators for tests: a
// scripted model client, an in-memory places backend and a metrics
// recorder.
package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/shinise-scout/internal/ports"
)

// ModelOutcome is one scripted model answer.
type ModelOutcome struct {
	Raw string
	Err error
}

// ModelCall records one Complete invocation.
type ModelCall struct {
	Prompt  string
	Options ports.CompleteOptions
	Started time.Time
}

// MockModelClient implements ports.ModelClient with per-task answers.
// Lookup order for a call labeled L: the next scripted outcome for L, then
// Handler, then the fixed response for L, then Default.
type MockModelClient struct {
	mu sync.Mutex

	// Default is returned when nothing else matches.
	Default string

	// Delay is applied to every call before it answers.
	Delay time.Duration

	// Handler computes answers dynamically when set. Returning false
	// falls through to the fixed responses.
	Handler func(prompt string, opts ports.CompleteOptions) (ModelOutcome, bool)

	responses map[string]string
	scripts   map[string][]ModelOutcome

	calls       []ModelCall
	inFlight    int
	maxInFlight int
}

var _ ports.ModelClient = (*MockModelClient)(nil)

// NewMockModelClient returns a client answering every task with an empty
// agent result.
func NewMockModelClient() *MockModelClient {
	return &MockModelClient{
		Default:   `{"summary":"ok","details":[]}`,
		responses: make(map[string]string),
		scripts:   make(map[string][]ModelOutcome),
	}
}

// SetResponse fixes the answer for every call labeled label.
func (m *MockModelClient) SetResponse(label, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[label] = raw
}

// Script queues outcomes consumed in order by calls labeled label.
func (m *MockModelClient) Script(label string, outcomes ...ModelOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[label] = append(m.scripts[label], outcomes...)
}

// Complete implements ports.ModelClient.
func (m *MockModelClient) Complete(ctx context.Context, prompt string, opts ports.CompleteOptions) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ModelCall{Prompt: prompt, Options: opts, Started: time.Now()})
	m.inFlight++
	m.maxInFlight = max(m.maxInFlight, m.inFlight)
	delay := m.Delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	raw, err := m.answer(prompt, opts)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(raw)) {
		return nil, ports.NewParseError(raw, errors.New("invalid JSON"))
	}
	return json.RawMessage(raw), nil
}

func (m *MockModelClient) answer(prompt string, opts ports.CompleteOptions) (string, error) {
	m.mu.Lock()
	if queue := m.scripts[opts.Label]; len(queue) > 0 {
		next := queue[0]
		m.scripts[opts.Label] = queue[1:]
		m.mu.Unlock()
		return next.Raw, next.Err
	}
	handler := m.Handler
	m.mu.Unlock()

	if handler != nil {
		if out, ok := handler(prompt, opts); ok {
			return out.Raw, out.Err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if raw, ok := m.responses[opts.Label]; ok {
		return raw, nil
	}
	return m.Default, nil
}

// Calls returns a copy of every recorded call.
func (m *MockModelClient) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ModelCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls labeled label, or all calls when
// label is empty.
func (m *MockModelClient) CallCount(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if label == "" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.Options.Label == label {
			n++
		}
	}
	return n
}

// MaxInFlight returns the highest number of concurrent calls observed.
func (m *MockModelClient) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}
