package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thefonseca/concept-guidelines/internal/ports"
)

func TestOpenAIProvider_DoRequest(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Human"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 1, "total_tokens": 43}
		}`))
	}))
	defer srv.Close()

	p, err := newOpenAIProvider(ClientConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	got, in, out, err := p.DoRequest(context.Background(), "Text: hiring\nCategory:", map[string]any{
		"max_tokens":  20,
		"temperature": 0.0,
		"system":      "answer with one category",
		"seed":        17,
	})
	require.NoError(t, err)
	assert.Equal(t, "Human", got)
	assert.Equal(t, 42, in)
	assert.Equal(t, 1, out)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.EqualValues(t, 20, body["max_tokens"])
	assert.EqualValues(t, 17, body["seed"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		want      ErrorType
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, ErrorTypeAuthentication, false},
		{"rate limited", http.StatusTooManyRequests, ErrorTypeRateLimit, true},
		{"server error", http.StatusInternalServerError, ErrorTypeServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "test"}}`))
			}))
			defer srv.Close()

			p, err := newOpenAIProvider(ClientConfig{APIKey: "k", Model: "m", BaseURL: srv.URL + "/v1"})
			require.NoError(t, err)

			_, _, _, err = p.DoRequest(context.Background(), "p", nil)
			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.want, perr.Type)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.retryable, errors.Is(err, ports.ErrServiceUnavailable))
		})
	}
}

func TestOpenAIProvider_Canceled(t *testing.T) {
	p, err := newOpenAIProvider(ClientConfig{APIKey: "k", Model: "m", BaseURL: "http://127.0.0.1:1/v1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err = p.DoRequest(ctx, "p", nil)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrorTypeNetwork, perr.Type)
}

func TestAnthropicProvider_DoRequest(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Social"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 30, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	p, err := newAnthropicProvider(ClientConfig{APIKey: "test-key", Model: "claude-3-5-haiku-latest", BaseURL: srv.URL})
	require.NoError(t, err)

	got, in, out, err := p.DoRequest(context.Background(), "Text: x\nCategory:", map[string]any{
		"max_tokens":  20,
		"temperature": 1.5,
		"system":      "be brief",
	})
	require.NoError(t, err)
	assert.Equal(t, "Social", got)
	assert.Equal(t, 30, in)
	assert.Equal(t, 2, out)

	assert.EqualValues(t, 20, body["max_tokens"])
	assert.EqualValues(t, 1, body["temperature"], "temperature is clamped to Anthropic's range")
	assert.NotNil(t, body["system"])
}

func TestAnthropicProvider_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer srv.Close()

	p, err := newAnthropicProvider(ClientConfig{APIKey: "bad", Model: "c", BaseURL: srv.URL})
	require.NoError(t, err)

	_, _, _, err = p.DoRequest(context.Background(), "p", nil)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrorTypeAuthentication, perr.Type)
	assert.False(t, perr.IsRetryable())
}

func TestGoogleProvider_GenerationConfig(t *testing.T) {
	p := &googleProvider{}
	temp, topP := 3.0, 0.5
	cfg := p.generationConfig(RequestOptions{
		MaxTokens:   20,
		Temperature: &temp,
		TopP:        &topP,
		System:      "be brief",
		Extra:       map[string]any{"top_k": 100, "seed": 17},
	})

	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, float32(2), *cfg.Temperature)
	assert.Equal(t, int32(20), cfg.MaxOutputTokens)
	assert.Equal(t, float32(0.5), *cfg.TopP)
	assert.Equal(t, float32(40), *cfg.TopK)
	assert.Equal(t, int32(17), *cfg.Seed)
	require.NotNil(t, cfg.SystemInstruction)
}

func TestGoogleProvider_RequiresKey(t *testing.T) {
	_, err := newGoogleProvider(ClientConfig{Model: "gemini"})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}
