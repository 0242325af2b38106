package llm

import (
	"context"
	"time"
)

// timeoutLLM gives every request its own deadline. A stalled provider call
// then fails with context.DeadlineExceeded instead of holding a classifier
// worker for the rest of the run.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware bounds each request, including any retries wrapped
// inside it. A non-positive timeout disables the bound and returns the
// wrapped client unchanged.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		if timeout <= 0 {
			return next
		}
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

// DoRequest derives a context with the configured timeout and forwards the
// call. A shorter deadline already on ctx still wins.
func (t *timeoutLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, prompt, opts)
}

// GetModel reports the model of the wrapped client.
func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

// SetModel forwards the model change to the wrapped client.
func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }
