package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// retryLLM repeats a failed request while the error is retryable and
// attempts remain. Waits between attempts honour the request context.
type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries transient provider failures with jittered
// exponential backoff. Permanent failures and an open circuit return at once.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: max(maxRetries, 0),
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// DoRequest makes up to maxRetries+1 attempts. A permanent error is returned
// as is; exhausting the attempts wraps the last transient error with the
// attempt count so callers still match it with errors.Is.
func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil || attempt == r.maxRetries {
			break
		}

		timer := time.NewTimer(r.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", 0, 0, ctx.Err()
		case <-timer.C:
		}
	}
	if !IsRetryable(lastErr) {
		return "", 0, 0, lastErr
	}
	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

// delay is baseDelay*2^attempt with ±25% jitter, capped at maxDelay.
func (r *retryLLM) delay(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	d := time.Duration(float64(r.baseDelay) * float64(int64(1)<<attempt))
	d = d - d/4 + time.Duration(rand.Float64()*float64(d)/2)
	if r.maxDelay > 0 && d > r.maxDelay {
		d = r.maxDelay
	}
	return d
}

// GetModel reports the model of the wrapped client.
func (r *retryLLM) GetModel() string { return r.next.GetModel() }

// SetModel forwards the model change to the wrapped client.
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
