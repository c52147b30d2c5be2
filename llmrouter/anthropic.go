package llmrouter

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter speaks the Anthropic Messages API natively. Anthropic
// reports exact token usage and a stop reason, so the raw response is a
// partial with those fields already present.
type AnthropicAdapter struct {
	name      string
	client    anthropic.Client
	model     string
	maxTokens int
	retry     RetryPolicy
}

// AnthropicConfig configures an AnthropicAdapter.
type AnthropicConfig struct {
	Name      string // registry name, defaults to "anthropic"
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Retry     *RetryPolicy
}

// NewAnthropicAdapter builds an adapter from config, filling defaults from
// the model catalog. An empty API key still constructs: the registry's
// configured flag keeps such an adapter out of candidate lists.
func NewAnthropicAdapter(cfg AnthropicConfig) (*AnthropicAdapter, error) {
	name := cfg.Name
	if name == "" {
		name = "anthropic"
	}

	model := cfg.Model
	if model == "" {
		if info := DefaultModel("anthropic"); info != nil {
			model = info.ID
		}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	retry := DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	return &AnthropicAdapter{
		name:      name,
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		retry:     retry,
	}, nil
}

// Name returns the registry name.
func (a *AnthropicAdapter) Name() string {
	return a.name
}

// Complete sends a Messages API request and returns the text with exact
// usage and a normalized stop reason.
func (a *AnthropicAdapter) Complete(ctx context.Context, req ChatRequest) (RawResponse, error) {
	params := a.translateRequest(req)

	msg, err := Retry(ctx, a.retry, func(ctx context.Context) (*anthropic.Message, error) {
		out, callErr := a.client.Messages.New(ctx, params)
		if callErr != nil {
			return nil, a.translateError(callErr)
		}
		return out, nil
	})
	if err != nil {
		return RawResponse{}, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		}
	}

	usage := Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return RawPartial(PartialFields{
		Text:         text.String(),
		Model:        string(msg.Model),
		Usage:        &usage,
		FinishReason: mapStopReason(string(msg.StopReason)),
	}), nil
}

// Embed is not supported: Anthropic exposes no embeddings API.
func (a *AnthropicAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrUnsupportedOperation
}

func (a *AnthropicAdapter) translateRequest(req ChatRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(resolveModel(a.name, req.Model, a.model)),
		MaxTokens: int64(a.maxTokens),
	}
	if req.MaxTokens != nil {
		params.MaxTokens = int64(*req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	var system strings.Builder
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(msg.Content)
		case RoleUser:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			params.Messages = append(params.Messages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if system.Len() > 0 {
		params.System = []anthropic.TextBlockParam{{Text: system.String()}}
	}

	return params
}

// mapStopReason converts Anthropic stop reasons to the common vocabulary.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "":
		return ""
	default:
		return reason
	}
}

func (a *AnthropicAdapter) translateError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return ErrorFromStatusCode(a.name, apiErr.StatusCode, apiErr.Error(), nil)
	}
	return ClassifyMessage(a.name, err)
}
