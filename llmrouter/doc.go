// Package llmrouter routes chat and embedding requests across multiple LLM
// providers with automatic fallback, response normalization, and cost
// tracking.
//
// # Architecture
//
// The package is organized in four layers:
//
//   - Layer 1 (Provider Adapters): ProviderAdapter implementations for
//     OpenAI, Anthropic, Ollama, and any gollm-supported vendor
//   - Layer 2 (Provider Utilities): retry policies and error classification
//   - Layer 3 (Normalization): the pure normalizer that reconciles the three
//     raw response shapes into one NormalizedResponse
//   - Layer 4 (Orchestration): the Client with its fallback chain, batch
//     worker pool, and cost tracker
//
// # Quick Start
//
//	registry := llmrouter.NewRegistry()
//	adapter, _ := llmrouter.NewOpenAIAdapter(llmrouter.OpenAIConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	registry.Register(llmrouter.ProviderDescriptor{
//	    Name:         "openai",
//	    Capabilities: []llmrouter.Capability{llmrouter.CapabilityChat},
//	    Priority:     1,
//	    Configured:   true,
//	}, adapter)
//
//	client := llmrouter.NewClient(registry)
//	resp, _ := client.Complete(ctx, llmrouter.ChatRequest{
//	    Messages: []llmrouter.Message{llmrouter.UserMessage("Hello")},
//	})
//	fmt.Println(resp.Text)
//
// # Fallback
//
// Candidates for a capability are tried strictly in priority order. A
// transient failure (timeout, rate limit, server error) advances to the
// next candidate; a validation failure aborts the whole call. When every
// candidate fails the caller gets AllProvidersFailedError with one Attempt
// per provider, in the order they were tried.
//
// # Cost Tracking
//
// Every successful call appends a CostRecord to the CostTracker. Totals are
// kept atomically, per provider and global, and a monthly budget can be
// observed (warning once per month) or enforced via WithHardStop.
//
// # Model Catalog
//
// A built-in catalog of known models supplies default models, pricing, and
// alias resolution:
//
//	info := llmrouter.GetModelInfo("claude-opus-4-6")
//	models := llmrouter.ListModels("anthropic")
package llmrouter
