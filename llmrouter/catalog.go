package llmrouter

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID                   string   `json:"id"`
	Provider             string   `json:"provider"`
	DisplayName          string   `json:"display_name"`
	ContextWindow        int      `json:"context_window"`
	MaxOutput            *int     `json:"max_output,omitempty"`
	SupportsVision       bool     `json:"supports_vision"`
	SupportsEmbeddings   bool     `json:"supports_embeddings"`
	InputCostPerMillion  *float64 `json:"input_cost_per_million,omitempty"`
	OutputCostPerMillion *float64 `json:"output_cost_per_million,omitempty"`
	Aliases              []string `json:"aliases,omitempty"`
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// Models is the built-in model catalog (February 2026). Rates are USD per
// million tokens; local models carry explicit zero rates so their calls are
// recorded at zero cost rather than treated as unpriced.
var Models = []ModelInfo{
	// Anthropic
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		ContextWindow: 200000, MaxOutput: intPtr(32768), SupportsVision: true,
		InputCostPerMillion: floatPtr(15.0), OutputCostPerMillion: floatPtr(75.0),
		Aliases: []string{"opus", "claude-opus"},
	},
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: intPtr(16384), SupportsVision: true,
		InputCostPerMillion: floatPtr(3.0), OutputCostPerMillion: floatPtr(15.0),
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-haiku-4-5", Provider: "anthropic", DisplayName: "Claude Haiku 4.5",
		ContextWindow: 200000, MaxOutput: intPtr(16384), SupportsVision: true,
		InputCostPerMillion: floatPtr(0.80), OutputCostPerMillion: floatPtr(4.0),
		Aliases: []string{"haiku", "claude-haiku"},
	},

	// OpenAI
	{
		ID: "gpt-5.2", Provider: "openai", DisplayName: "GPT-5.2",
		ContextWindow: 1047576, MaxOutput: intPtr(32768), SupportsVision: true,
		InputCostPerMillion: floatPtr(2.50), OutputCostPerMillion: floatPtr(10.0),
		Aliases: []string{"gpt5"},
	},
	{
		ID: "gpt-5.2-mini", Provider: "openai", DisplayName: "GPT-5.2 Mini",
		ContextWindow: 1047576, MaxOutput: intPtr(16384), SupportsVision: true,
		InputCostPerMillion: floatPtr(0.75), OutputCostPerMillion: floatPtr(3.0),
		Aliases: []string{"gpt5-mini"},
	},
	{
		ID: "text-embedding-3-small", Provider: "openai", DisplayName: "Text Embedding 3 Small",
		ContextWindow: 8191, SupportsEmbeddings: true,
		InputCostPerMillion: floatPtr(0.02),
	},
	{
		ID: "text-embedding-3-large", Provider: "openai", DisplayName: "Text Embedding 3 Large",
		ContextWindow: 8191, SupportsEmbeddings: true,
		InputCostPerMillion: floatPtr(0.13),
	},

	// Mistral (reachable through the gollm adapter)
	{
		ID: "mistral-large-latest", Provider: "mistral", DisplayName: "Mistral Large",
		ContextWindow: 128000, MaxOutput: intPtr(8192),
		InputCostPerMillion: floatPtr(2.0), OutputCostPerMillion: floatPtr(6.0),
		Aliases: []string{"mistral-large"},
	},

	// Ollama (local, free)
	{
		ID: "llama3.3", Provider: "ollama", DisplayName: "Llama 3.3 70B",
		ContextWindow: 131072, MaxOutput: intPtr(8192),
		InputCostPerMillion: floatPtr(0), OutputCostPerMillion: floatPtr(0),
		Aliases: []string{"llama3"},
	},
	{
		ID: "nomic-embed-text", Provider: "ollama", DisplayName: "Nomic Embed Text",
		ContextWindow: 8192, SupportsEmbeddings: true,
		InputCostPerMillion: floatPtr(0),
	},
}

// GetModelInfo returns the catalog entry for a model ID or alias, or nil if
// unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// DefaultModel returns the first catalog chat model for a provider, or nil.
func DefaultModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider && !Models[i].SupportsEmbeddings {
			return &Models[i]
		}
	}
	return nil
}

// DefaultEmbeddingModel returns the first catalog embedding model for a
// provider, or nil.
func DefaultEmbeddingModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider && Models[i].SupportsEmbeddings {
			return &Models[i]
		}
	}
	return nil
}

// resolveModel picks the model an adapter should actually send: the
// requested model when it belongs to this provider or is unknown to the
// catalog, otherwise the adapter's own default. Fallback can hand any
// provider a request that names another provider's model.
func resolveModel(provider, requested, fallback string) string {
	if requested != "" {
		info := GetModelInfo(requested)
		if info == nil || info.Provider == provider {
			return requested
		}
	}
	return fallback
}

// CostForUsage prices a call against a catalog entry. Unknown models and
// models without published rates price at zero; the tracker still records
// the tokens so unpriced traffic stays visible.
func CostForUsage(info *ModelInfo, usage Usage) Cost {
	if info == nil {
		return Cost{}
	}
	var c Cost
	if info.InputCostPerMillion != nil {
		c.Prompt = float64(usage.PromptTokens) * *info.InputCostPerMillion / 1e6
	}
	if info.OutputCostPerMillion != nil {
		c.Completion = float64(usage.CompletionTokens) * *info.OutputCostPerMillion / 1e6
	}
	c.Total = c.Prompt + c.Completion
	return c
}
