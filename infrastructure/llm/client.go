// Package llm is the completion backend of the classifier: a unified client
// over hosted language model providers with rate limiting, retries, circuit
// breaking, timeouts, tracing and metrics layered on as middleware.
//
// Providers implement CoreLLM and register a factory by name. The client
// wraps the provider in the configured middleware chain:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(5, 5),
//	        llm.RetryMiddleware(3, time.Second, 30*time.Second),
//	    },
//	})
//	answer, err := client.Complete(ctx, prompt, map[string]any{"max_tokens": 20})
package llm

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// DefaultMaxTokens bounds completions when the caller does not set
// max_tokens. Category answers are short.
const DefaultMaxTokens = 256

// CoreLLM is the minimal surface a provider implements. Middleware wraps it.
type CoreLLM interface {
	// DoRequest sends a prompt and returns the response text with input and
	// output token counts.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the configured model name.
	GetModel() string

	// SetModel changes the model used by subsequent requests.
	SetModel(model string)
}

// TokenEstimator approximates token counts before a request is made.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// ClientConfig holds the settings used to build a Client.
type ClientConfig struct {
	// APIKey authenticates requests. The mock provider ignores it.
	APIKey string

	// Model is the provider-specific model name.
	Model string

	// BaseURL overrides the provider's endpoint.
	BaseURL string

	// Timeout bounds a single HTTP request. Zero keeps the provider default.
	Timeout time.Duration

	// TokenEstimator overrides the character-based estimator.
	TokenEstimator TokenEstimator

	// Middleware is applied in order; the first entry is outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM with cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient on top of a middleware-wrapped provider.
type Client struct {
	provider  string
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient creates a client for the named provider.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := lookupProviderFactory(providerType)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %s)", providerType, strings.Join(ProviderNames(), ", "))
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	// Apply middleware in reverse so the first one is outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = NewTokenCounter()
	}

	return &Client{
		provider:  providerType,
		core:      core,
		estimator: estimator,
	}, nil
}

// Complete sends a prompt and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and also returns token usage.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens returns an approximate token count for text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// Provider returns the provider name the client was built with.
func (c *Client) Provider() string { return c.provider }

// ParseModel splits a "provider/model" reference. Only the first slash
// separates the provider, so model names may contain slashes themselves.
func ParseModel(ref string) (provider, model string, err error) {
	provider, model, ok := strings.Cut(ref, "/")
	if !ok || provider == "" || model == "" {
		return "", "", fmt.Errorf("model %q must be in provider/model format", ref)
	}
	return provider, model, nil
}

// APIKeyEnv names the environment variable holding each provider's key.
var APIKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// ProviderFactory creates a provider from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	factoriesMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory makes a provider available to NewClient.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	providerFactories[providerType] = factory
}

// lookupProviderFactory returns the factory registered under providerType.
func lookupProviderFactory(providerType string) (ProviderFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := providerFactories[providerType]
	return f, ok
}

// ProviderNames lists the registered providers in sorted order.
func ProviderNames() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
