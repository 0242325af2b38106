package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thefonseca/concept-guidelines/internal/ports"
)

func TestErrorClassifier_ClassifyHTTPError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "openai"}
	tests := []struct {
		status    int
		want      ErrorType
		retryable bool
	}{
		{401, ErrorTypeAuthentication, false},
		{403, ErrorTypeAuthentication, false},
		{429, ErrorTypeRateLimit, true},
		{400, ErrorTypeBadRequest, false},
		{404, ErrorTypeNotFound, false},
		{422, ErrorTypeBadRequest, false},
		{500, ErrorTypeServerError, true},
		{529, ErrorTypeServerError, true},
		{0, ErrorTypeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ec.ClassifyHTTPError(tt.status, "msg", errors.New("raw"))
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.retryable, err.IsRetryable())
			assert.Equal(t, tt.retryable, errors.Is(err, ports.ErrServiceUnavailable))
		})
	}
}

func TestErrorClassifier_ClassifyContextError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "google"}

	err := ec.ClassifyContextError(context.DeadlineExceeded)
	assert.Equal(t, ErrorTypeTimeout, err.Type)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = ec.ClassifyContextError(context.Canceled)
	assert.Equal(t, ErrorTypeNetwork, err.Type)
}

func TestProviderError_Error(t *testing.T) {
	err := NewProviderError("anthropic", ErrorTypeRateLimit, 429, "slow down", errors.New("boom"))
	assert.Equal(t, "anthropic error (HTTP 429) [rate_limit]: slow down: boom", err.Error())

	wrapped := fmt.Errorf("classify: %w", err)
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(errors.New("plain")))
}
