package llmrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaHost is used when no host is configured.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaAdapter runs chat and embeddings against a local Ollama server.
// Local models have no billed cost; the catalog carries explicit zero rates
// for them so cost records stay meaningful.
type OllamaAdapter struct {
	name       string
	client     *api.Client
	model      string
	embedModel string
	retry      RetryPolicy
}

// OllamaConfig configures an OllamaAdapter.
type OllamaConfig struct {
	Name       string // registry name, defaults to "ollama"
	Host       string // defaults to DefaultOllamaHost
	Model      string
	EmbedModel string
	Retry      *RetryPolicy
}

// NewOllamaAdapter builds an adapter from config, filling defaults from the
// model catalog.
func NewOllamaAdapter(cfg OllamaConfig) (*OllamaAdapter, error) {
	name := cfg.Name
	if name == "" {
		name = "ollama"
	}

	host := cfg.Host
	if host == "" {
		host = DefaultOllamaHost
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama adapter: invalid host %q: %w", host, err)
	}

	model := cfg.Model
	if model == "" {
		if info := DefaultModel("ollama"); info != nil {
			model = info.ID
		}
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		if info := DefaultEmbeddingModel("ollama"); info != nil {
			embedModel = info.ID
		}
	}

	retry := DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	return &OllamaAdapter{
		name:       name,
		client:     api.NewClient(base, http.DefaultClient),
		model:      model,
		embedModel: embedModel,
		retry:      retry,
	}, nil
}

// Name returns the registry name.
func (a *OllamaAdapter) Name() string {
	return a.name
}

// EmbeddingModel returns the model used for Embed calls.
func (a *OllamaAdapter) EmbeddingModel() string {
	return a.embedModel
}

// Ping reports whether the Ollama server is reachable.
func (a *OllamaAdapter) Ping(ctx context.Context) error {
	_, err := a.client.List(ctx)
	if err != nil {
		return a.translateError(err)
	}
	return nil
}

// Complete sends a non-streaming chat request. Ollama reports evaluation
// counts, which map directly onto token usage.
func (a *OllamaAdapter) Complete(ctx context.Context, req ChatRequest) (RawResponse, error) {
	model := resolveModel(a.name, req.Model, a.model)

	messages := make([]api.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		options["num_predict"] = *req.MaxTokens
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	type chatResult struct {
		text         strings.Builder
		doneReason   string
		promptTokens int
		evalTokens   int
	}

	result, err := Retry(ctx, a.retry, func(ctx context.Context) (*chatResult, error) {
		res := &chatResult{}
		callErr := a.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			res.text.WriteString(resp.Message.Content)
			if resp.Done {
				res.doneReason = resp.DoneReason
				res.promptTokens = resp.PromptEvalCount
				res.evalTokens = resp.EvalCount
			}
			return nil
		})
		if callErr != nil {
			return nil, a.translateError(callErr)
		}
		return res, nil
	})
	if err != nil {
		return RawResponse{}, err
	}

	usage := Usage{
		PromptTokens:     result.promptTokens,
		CompletionTokens: result.evalTokens,
		TotalTokens:      result.promptTokens + result.evalTokens,
	}

	return RawPartial(PartialFields{
		Text:         result.text.String(),
		Model:        model,
		Usage:        &usage,
		Cost:         &Cost{}, // local models bill nothing
		FinishReason: result.doneReason,
	}), nil
}

// Embed returns the embedding vector for one input text.
func (a *OllamaAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := Retry(ctx, a.retry, func(ctx context.Context) (*api.EmbeddingResponse, error) {
		out, callErr := a.client.Embeddings(ctx, &api.EmbeddingRequest{
			Model:  a.embedModel,
			Prompt: text,
		})
		if callErr != nil {
			return nil, a.translateError(callErr)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	vector := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

func (a *OllamaAdapter) translateError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.ErrorMessage
		if msg == "" {
			msg = statusErr.Status
		}
		return ErrorFromStatusCode(a.name, statusErr.StatusCode, msg, nil)
	}
	return ClassifyMessage(a.name, err)
}
