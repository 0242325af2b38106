package llm

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Valid ranges of common request parameters.
const (
	MinTemperature = 0.0
	// MaxTemperature accommodates providers like Gemini that accept up to 2.
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinPenalty     = -2.0
	MaxPenalty     = 2.0
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 10 * time.Minute
)

// BaseProvider holds the model name behind a lock so providers can be
// shared across the classifier's workers.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the configured model.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the provider-neutral view of a request's options map.
type RequestOptions struct {
	MaxTokens int
	Model     string
	// Temperature and TopP are nil when the provider default applies.
	Temperature *float64
	TopP        *float64
	System      string
	// Extra carries provider-specific keys untouched.
	Extra map[string]any
}

// ParseRequestOptions reads the standard keys from opts, falling back to
// defaults for missing or invalid values.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}
	if topP := ExtractOptionalFloat64(opts, "top_p", -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p":
		default:
			options.Extra[k] = v
		}
	}
	return options
}

// ExtractOptionalInt reads an integer option. Any numeric type that
// converts without loss is accepted.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, validator func(int) bool) int {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}
	intVal, ok := SafeInt(val)
	if !ok || (validator != nil && !validator(intVal)) {
		return defaultVal
	}
	return intVal
}

// ExtractOptionalString reads a string option.
func ExtractOptionalString(opts map[string]any, key string, defaultVal string, validator func(string) bool) string {
	strVal, ok := opts[key].(string)
	if !ok || (validator != nil && !validator(strVal)) {
		return defaultVal
	}
	return strVal
}

// ExtractOptionalFloat64 reads a float option. Integers are accepted.
func ExtractOptionalFloat64(opts map[string]any, key string, defaultVal float64, validator func(float64) bool) float64 {
	var f float64
	switch v := opts[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	default:
		return defaultVal
	}
	if validator != nil && !validator(f) {
		return defaultVal
	}
	return f
}

// IsPositiveInt accepts strictly positive values such as max_tokens.
func IsPositiveInt(val int) bool { return val > 0 }

// IsNonEmptyString rejects the empty string so a blank model option falls
// back to the client's model.
func IsNonEmptyString(val string) bool { return val != "" }

// IsValidTemperature accepts temperatures inside the widest range any
// registered provider supports. Providers clamp further when needed.
func IsValidTemperature(val float64) bool { return val >= MinTemperature && val <= MaxTemperature }

// IsValidTopP accepts nucleus sampling probabilities in [0, 1].
func IsValidTopP(val float64) bool { return val >= MinTopP && val <= MaxTopP }

// ClampFloat64 limits val to [lo, hi]. Providers use it to keep sampling
// parameters inside the range their API accepts.
func ClampFloat64(val, lo, hi float64) float64 { return min(max(val, lo), hi) }

// ClampInt limits val to [lo, hi].
func ClampInt(val, lo, hi int) int { return min(max(val, lo), hi) }

// ValidateBaseURL checks that baseURL is an absolute http(s) URL. An empty
// string keeps the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return parsed.String(), nil
}

// ValidateTimeout clamps timeout into [MinTimeout, MaxTimeout]. Zero or
// negative keeps the default.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return min(max(timeout, MinTimeout), MaxTimeout)
}

// SafeFloat32 converts a numeric option to float32, rejecting values that
// would overflow or lose integer precision.
func SafeFloat32(value any) (float32, bool) {
	switch v := value.(type) {
	case float32:
		return v, true
	case float64:
		if v > 3.4e38 || v < -3.4e38 {
			return 0, false
		}
		return float32(v), true
	case int:
		// 2^24 is the largest integer float32 holds exactly.
		if v > 1<<24 || v < -(1<<24) {
			return 0, false
		}
		return float32(v), true
	default:
		return 0, false
	}
}

// SafeInt converts a numeric option to int. Floats must be integral.
func SafeInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		if int64(int(v)) != v {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != v || v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// TokenCounter estimates tokens from character counts.
type TokenCounter struct {
	CharactersPerToken float64
}

// NewTokenCounter returns a counter tuned for English text.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens returns the estimated token count of text, rounding up.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := int(float64(len(text))/tc.CharactersPerToken + 0.999)
	return max(n, 1)
}

// GetTokenCount prefers the provider-reported count and estimates otherwise.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
