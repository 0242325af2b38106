package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedLLM paces requests through a token bucket before they reach
// the provider. Every classifier worker shares the same bucket, so the
// configured rate holds for the whole evaluation rather than per goroutine.
type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware admits at most limit requests per second. burst lets
// that many requests through at once after an idle period; values below
// one are raised to one so the limiter can ever admit a request.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, max(burst, 1))
	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{next: next, limiter: limiter}
	}
}

// DoRequest blocks until the bucket holds a token, then forwards the call.
// A cancelled context, or a wait that would outlast its deadline, returns
// early with the limiter's error wrapped.
func (r *rateLimitedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, prompt, opts)
}

// GetModel reports the model of the wrapped client.
func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }

// SetModel forwards the model change to the wrapped client.
func (r *rateLimitedLLM) SetModel(m string) { r.next.SetModel(m) }
