package llmrouter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/teilomillet/gollm"
)

// GollmAdapter drives any vendor from gollm's provider matrix (mistral,
// groq, deepseek, and friends) through a single adapter. gollm returns bare
// text with no usage payload, so token counts are estimated with the shared
// encoder before the response is handed to the normalizer.
type GollmAdapter struct {
	provider  string
	model     string
	retry     RetryPolicy
	estimator *TokenEstimator

	// gollm keeps request options as instance state, so option overrides
	// and Generate must not interleave across goroutines.
	mu  sync.Mutex
	llm gollm.LLM
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	retry       RetryPolicy
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the API key. When empty, gollm reads the provider's
// conventional environment variable.
func WithAPIKey(key string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.apiKey = key
	}
}

// WithModel sets the default model.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// WithRetryPolicy replaces the adapter's internal retry policy.
func WithRetryPolicy(policy RetryPolicy) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.retry = policy
	}
}

// WithGollmOptions appends extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmAdapter creates an adapter for one gollm provider.
func NewGollmAdapter(provider string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmAdapterConfig{
		maxTokens:   4096,
		temperature: 0.7,
		retry:       DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		if info := DefaultModel(provider); info != nil {
			model = info.ID
		} else {
			model = "mistral-large-latest"
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // retries belong to the adapter's own policy
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("gollm init for provider %s: %w", provider, err)
	}

	return &GollmAdapter{
		provider:  provider,
		model:     model,
		retry:     cfg.retry,
		estimator: NewTokenEstimator(),
		llm:       llm,
	}, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{
		provider:  provider,
		retry:     DefaultRetryPolicy(),
		estimator: NewTokenEstimator(),
		llm:       llm,
	}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Complete sends a blocking request and returns the raw text with estimated
// usage attached.
func (a *GollmAdapter) Complete(ctx context.Context, req ChatRequest) (RawResponse, error) {
	prompt := a.translateRequest(req)
	model := resolveModel(a.provider, req.Model, a.model)

	text, err := Retry(ctx, a.retry, func(ctx context.Context) (string, error) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.applyRequestOptions(req, model)
		out, genErr := a.llm.Generate(ctx, prompt)
		if genErr != nil {
			return "", ClassifyMessage(a.provider, genErr)
		}
		return out, nil
	})
	if err != nil {
		return RawResponse{}, err
	}

	promptTokens := a.estimator.CountMessages(req.Messages)
	completionTokens := a.estimator.Count(text)
	return RawPartial(PartialFields{
		Text:  text,
		Model: model,
		Usage: &Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}), nil
}

// Embed is not supported: gollm exposes no embeddings API.
func (a *GollmAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrUnsupportedOperation
}

// translateRequest flattens the message list into gollm's single-prompt
// shape: system messages become the system prompt, the rest joins into one
// user prompt with assistant turns marked inline.
func (a *GollmAdapter) translateRequest(req ChatRequest) *gollm.Prompt {
	var system strings.Builder
	var parts []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system.WriteString(msg.Content)
			system.WriteString("\n")
		case RoleUser:
			parts = append(parts, msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				parts = append(parts, "[Assistant]: "+msg.Content)
			}
		}
	}

	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	var promptOpts []gollm.PromptOption
	if s := strings.TrimSpace(system.String()); s != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(s, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// applyRequestOptions pushes request-level overrides into the gollm
// instance. Callers hold a.mu.
func (a *GollmAdapter) applyRequestOptions(req ChatRequest, model string) {
	if model != "" && model != a.model {
		a.llm.SetOption("model", model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}
}
