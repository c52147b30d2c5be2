package llmrouter

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter speaks the OpenAI chat and embeddings APIs natively, so the
// raw response keeps the full choices envelope instead of being flattened
// to text. BaseURL overrides let it front any OpenAI-compatible server.
type OpenAIAdapter struct {
	name       string
	client     *openai.Client
	model      string
	embedModel string
	maxTokens  int
	retry      RetryPolicy
}

// OpenAIConfig configures an OpenAIAdapter.
type OpenAIConfig struct {
	Name       string // registry name, defaults to "openai"
	APIKey     string
	BaseURL    string // optional, for gateways and compatible servers
	Model      string
	EmbedModel string
	MaxTokens  int
	Retry      *RetryPolicy
}

// NewOpenAIAdapter builds an adapter from config, filling defaults from the
// model catalog. An empty API key still constructs: the registry's configured
// flag keeps such an adapter out of candidate lists.
func NewOpenAIAdapter(cfg OpenAIConfig) (*OpenAIAdapter, error) {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	model := cfg.Model
	if model == "" {
		if info := DefaultModel("openai"); info != nil {
			model = info.ID
		}
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		if info := DefaultEmbeddingModel("openai"); info != nil {
			embedModel = info.ID
		}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	retry := DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	return &OpenAIAdapter{
		name:       name,
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		embedModel: embedModel,
		maxTokens:  cfg.MaxTokens,
		retry:      retry,
	}, nil
}

// Name returns the registry name.
func (a *OpenAIAdapter) Name() string {
	return a.name
}

// EmbeddingModel returns the model used for Embed calls.
func (a *OpenAIAdapter) EmbeddingModel() string {
	return a.embedModel
}

// Complete sends a chat completion and returns the provider's envelope
// untouched; shaping is the normalizer's job.
func (a *OpenAIAdapter) Complete(ctx context.Context, req ChatRequest) (RawResponse, error) {
	oaReq := openai.ChatCompletionRequest{
		Model:    resolveModel(a.name, req.Model, a.model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature != nil {
		oaReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		oaReq.MaxTokens = *req.MaxTokens
	} else if a.maxTokens > 0 {
		oaReq.MaxTokens = a.maxTokens
	}

	resp, err := Retry(ctx, a.retry, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		out, callErr := a.client.CreateChatCompletion(ctx, oaReq)
		if callErr != nil {
			return openai.ChatCompletionResponse{}, a.translateError(callErr)
		}
		return out, nil
	})
	if err != nil {
		return RawResponse{}, err
	}

	return RawEnvelope(toEnvelope(resp)), nil
}

// Embed returns the embedding vector for one input text.
func (a *OpenAIAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := Retry(ctx, a.retry, func(ctx context.Context) (openai.EmbeddingResponse, error) {
		out, callErr := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(a.embedModel),
			Input: []string{text},
		})
		if callErr != nil {
			return openai.EmbeddingResponse{}, a.translateError(callErr)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, malformedError(a.name, "embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return out
}

func toEnvelope(resp openai.ChatCompletionResponse) ChoiceEnvelope {
	env := ChoiceEnvelope{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: &EnvelopeUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, choice := range resp.Choices {
		env.Choices = append(env.Choices, EnvelopeChoice{
			Index:        choice.Index,
			Message:      EnvelopeMessage{Role: choice.Message.Role, Content: choice.Message.Content},
			FinishReason: string(choice.FinishReason),
		})
	}
	return env
}

// translateError maps SDK errors onto the taxonomy using the HTTP status
// when the SDK surfaces one.
func (a *OpenAIAdapter) translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ErrorFromStatusCode(a.name, apiErr.HTTPStatusCode, apiErr.Message, nil)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ErrorFromStatusCode(a.name, reqErr.HTTPStatusCode, reqErr.Error(), nil)
	}
	return ClassifyMessage(a.name, err)
}
