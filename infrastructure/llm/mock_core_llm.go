package llm

import (
	"context"
	"sync"
	"time"
)

// MockCoreLLM is a scripted CoreLLM for tests. Scripted responses and
// errors are consumed in order; once exhausted the default Response or
// Error is returned.
type MockCoreLLM struct {
	mu sync.Mutex

	Response      Response
	Error         error
	Model         string
	ResponseDelay time.Duration

	// Script holds per-call outcomes consumed in order.
	Script []MockOutcome

	CallCount   int
	Prompts     []string
	LastOpts    map[string]any
	CallStarted []time.Time
}

// MockOutcome is one scripted call result.
type MockOutcome struct {
	Response Response
	Err      error
}

// NewMockCoreLLM returns a mock answering with a fixed JSON object.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response: Response{Text: `{"summary":"ok","details":[]}`, TokensIn: 10, TokensOut: 20},
		Model:    "test-model",
	}
}

// DoRequest implements CoreLLM.
func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (Response, error) {
	m.mu.Lock()
	m.CallCount++
	m.Prompts = append(m.Prompts, prompt)
	m.LastOpts = opts
	m.CallStarted = append(m.CallStarted, time.Now())
	delay := m.ResponseDelay
	var outcome *MockOutcome
	if len(m.Script) > 0 {
		outcome = &m.Script[0]
		m.Script = m.Script[1:]
	}
	resp, err := m.Response, m.Error
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}

	if outcome != nil {
		return outcome.Response, outcome.Err
	}
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// GetModel returns the configured model name.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns the number of DoRequest calls so far.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
