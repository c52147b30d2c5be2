package llmrouter

import "context"

// ProviderAdapter is the interface every provider backend implements. An
// adapter translates the canonical request into one vendor call and hands
// back whatever shape that vendor produced, wrapped in the RawResponse
// variant. Adapters never normalize; reconciling shapes is the normalizer's
// job. Both operations are network-bound and must honor ctx.
type ProviderAdapter interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Complete sends a blocking completion request.
	Complete(ctx context.Context, req ChatRequest) (RawResponse, error)

	// Embed returns an embedding vector for the text. Adapters without the
	// embed capability return ErrUnsupportedOperation.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Optional interfaces adapters may implement.

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}

// EmbeddingModeler is implemented by adapters that can report which model
// serves their Embed calls, so embedding cost is attributed to the right
// catalog entry.
type EmbeddingModeler interface {
	EmbeddingModel() string
}

// Pinger is implemented by adapters with a cheap reachability check. Deep
// health checks use it; adapters where any probe would bill tokens leave it
// unimplemented.
type Pinger interface {
	Ping(ctx context.Context) error
}
