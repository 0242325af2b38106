package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when the configuration names no model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider talks to the OpenAI chat completions API, or any
// compatible endpoint set through BaseURL. Each classifier prompt becomes a
// single user message; the optional system option is sent ahead of it.
// Token counts come from the response usage block and fall back to an
// estimate when the endpoint omits them.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newOpenAIProvider builds the provider registered as "openai". It requires
// an API key, defaults the model to OpenAIDefaultModel, and validates any
// custom BaseURL before the first request is made.
func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		baseURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = baseURL
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          openai.NewClientWithConfig(clientConfig),
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends one chat completion with the prompt as the user message
// and returns the first choice with its input and output token counts.
// Failures are classified into a *ProviderError so the retry and breaker
// middleware can tell transient errors from permanent ones.
func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(prompt, options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content
	return content,
		p.tokenCounter.GetTokenCount(resp.Usage.PromptTokens, prompt),
		p.tokenCounter.GetTokenCount(resp.Usage.CompletionTokens, content),
		nil
}

// buildRequest maps the generic request options onto a chat completion
// request. Sampling parameters are clamped to the ranges OpenAI accepts, and
// seed and penalty values are read from the provider-specific extras.
func (p *openAIProvider) buildRequest(prompt string, options RequestOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:     options.Model,
		Messages:  messages,
		MaxTokens: options.MaxTokens,
	}
	if options.Temperature != nil {
		req.Temperature = float32(ClampFloat64(*options.Temperature, 0, 2))
	}
	if options.TopP != nil {
		req.TopP = float32(ClampFloat64(*options.TopP, 0, 1))
	}
	if seed, ok := SafeInt(options.Extra["seed"]); ok {
		req.Seed = &seed
	}
	if v, ok := SafeFloat32(options.Extra["frequency_penalty"]); ok {
		req.FrequencyPenalty = float32(ClampFloat64(float64(v), MinPenalty, MaxPenalty))
	}
	if v, ok := SafeFloat32(options.Extra["presence_penalty"]); ok {
		req.PresencePenalty = float32(ClampFloat64(float64(v), MinPenalty, MaxPenalty))
	}
	return req
}

// handleError converts a go-openai error into a *ProviderError. Context
// errors are reported as network failures; API and request errors are
// classified by HTTP status.
func (p *openAIProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.errorClassifier.ClassifyHTTPError(reqErr.HTTPStatusCode, "request failed", err)
	}

	return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
}
