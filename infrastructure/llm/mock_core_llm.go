package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

func init() {
	RegisterProviderFactory("mock", func(config ClientConfig) (CoreLLM, error) {
		m := NewMockCoreLLM()
		m.Model = config.Model
		m.Responder = FirstCategoryResponder
		return m, nil
	})
}

// errSimulated is returned by MockCoreLLM failure modes when no Error is set.
var errSimulated = NewProviderError("mock", ErrorTypeServerError, 503, "simulated failure", errors.New("unavailable"))

// MockCoreLLM is a scriptable CoreLLM for middleware tests and dry runs.
// The "mock" provider builds one that answers with the first category a
// prompt lists.
type MockCoreLLM struct {
	mu sync.Mutex

	Response  string
	Responder func(prompt string) string
	TokensIn  int
	TokensOut int
	Error     error
	Model     string
	Delay     time.Duration

	// FailUntilAttempt fails the first N calls, then succeeds.
	FailUntilAttempt int

	CallCount  int
	LastPrompt string
	LastOpts   map[string]any
}

// NewMockCoreLLM returns a mock that always succeeds.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest records the call and replies as configured.
func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastPrompt = prompt
	m.LastOpts = opts
	delay, failUntil, fixedErr := m.Delay, m.FailUntilAttempt, m.Error
	response, responder := m.Response, m.Responder
	tokensIn, tokensOut := m.TokensIn, m.TokensOut
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", 0, 0, err
	}

	if failUntil > 0 && call <= failUntil {
		if fixedErr != nil {
			return "", 0, 0, fixedErr
		}
		return "", 0, 0, errSimulated
	}
	if fixedErr != nil && failUntil == 0 {
		return "", 0, 0, fixedErr
	}

	if responder != nil {
		response = responder(prompt)
	}
	return response, tokensIn, tokensOut, nil
}

// GetModel returns the configured model.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the configured model.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// Calls returns the number of requests received.
func (m *MockCoreLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// FirstCategoryResponder answers with the first "- Name" bullet of the
// prompt, or the first name of a "Categories: A, B" line. It returns an
// empty-looking answer when the prompt lists no categories.
func FirstCategoryResponder(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "- "); ok {
			name, _, _ = strings.Cut(name, ":")
			return strings.TrimSpace(name)
		}
		if list, ok := strings.CutPrefix(line, "Categories:"); ok {
			first, _, _ := strings.Cut(list, ",")
			return strings.TrimSpace(first)
		}
	}
	return "none"
}
