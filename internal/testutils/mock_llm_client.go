package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// DefaultMockResponse is returned when no pattern matches a prompt.
const DefaultMockResponse = "I am not sure."

// MockLLMClient implements the LLMClient interface with deterministic
// responses for classifier tests. A response is chosen by matching the
// patterns against the text being classified, which is the part of the
// prompt after its last "Text:" marker, so guideline text in the context
// never triggers a match.
// It is safe for concurrent use.
type MockLLMClient struct {
	mu sync.Mutex
	// model is the mock model identifier.
	model string
	// responses holds the configured patterns in match order.
	responses []MockResponse
	// prompts records every prompt received.
	prompts []string
	// err is returned by every Complete call when set.
	err error
}

// MockResponse defines a pre-configured response pattern for the mock client.
type MockResponse struct {
	// Pattern is matched case-insensitively against the classified text.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
	// TokensUsed is the estimated token count for this response.
	TokensUsed int
}

// NewMockLLMClient creates a MockLLMClient with no patterns configured.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{model: model}
}

// AddResponse appends a response pattern. Earlier patterns win.
func (m *MockLLMClient) AddResponse(response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, response)
}

// SetError makes every subsequent Complete call fail with err.
func (m *MockLLMClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete implements the LLMClient.Complete method.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}

	text := strings.ToLower(classifiedText(prompt))
	for _, r := range m.responses {
		if strings.Contains(text, strings.ToLower(r.Pattern)) {
			return r.Response, nil
		}
	}
	return DefaultMockResponse, nil
}

// classifiedText returns the prompt after the last "Text:" marker.
func classifiedText(prompt string) string {
	i := strings.LastIndex(prompt, "Text:")
	if i < 0 {
		return prompt
	}
	return prompt[i+len("Text:"):]
}

// EstimateTokens implements the LLMClient.EstimateTokens method using
// a simple estimation algorithm based on text length.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	// Simple token estimation: approximately 4 characters per token.
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1 // Minimum one token for non-empty text.
	}

	return tokens, nil
}

// GetModel implements the LLMClient.GetModel method returning the mock model identifier.
func (m *MockLLMClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// SetModel updates the mock model identifier.
func (m *MockLLMClient) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// Prompts returns a copy of every prompt received so far.
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// GetTokenUsage returns the token count configured for a pattern.
func (m *MockLLMClient) GetTokenUsage(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.responses {
		if r.Pattern == pattern {
			return r.TokensUsed
		}
	}
	return 0
}

// Reset clears patterns, recorded prompts and the configured error.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = nil
	m.prompts = nil
	m.err = nil
}

// Verify interface compliance at compile time.
var _ ports.LLMClient = (*MockLLMClient)(nil)
