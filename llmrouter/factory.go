package llmrouter

import "fmt"

// Adapter kinds accepted in configuration.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindOllama    = "ollama"
	KindGollm     = "gollm"
)

// AdapterSpec describes one provider entry from configuration, flattened
// across all adapter kinds. Fields that do not apply to a kind are ignored.
type AdapterSpec struct {
	Kind        string
	Name        string // registry name, defaults to Kind
	APIKey      string
	BaseURL     string
	Host        string // ollama only
	Provider    string // gollm backend, e.g. "mistral" or "groq"
	Model       string
	EmbedModel  string
	MaxTokens   int
	Temperature *float64
}

// NewAdapter constructs the adapter a spec describes.
func NewAdapter(spec AdapterSpec) (ProviderAdapter, error) {
	switch spec.Kind {
	case KindOpenAI:
		return NewOpenAIAdapter(OpenAIConfig{
			Name:       spec.Name,
			APIKey:     spec.APIKey,
			BaseURL:    spec.BaseURL,
			Model:      spec.Model,
			EmbedModel: spec.EmbedModel,
			MaxTokens:  spec.MaxTokens,
		})
	case KindAnthropic:
		return NewAnthropicAdapter(AnthropicConfig{
			Name:      spec.Name,
			APIKey:    spec.APIKey,
			BaseURL:   spec.BaseURL,
			Model:     spec.Model,
			MaxTokens: spec.MaxTokens,
		})
	case KindOllama:
		return NewOllamaAdapter(OllamaConfig{
			Name:       spec.Name,
			Host:       spec.Host,
			Model:      spec.Model,
			EmbedModel: spec.EmbedModel,
		})
	case KindGollm:
		backend := spec.Provider
		if backend == "" {
			backend = "mistral"
		}
		opts := []GollmAdapterOption{}
		if spec.APIKey != "" {
			opts = append(opts, WithAPIKey(spec.APIKey))
		}
		if spec.Model != "" {
			opts = append(opts, WithModel(spec.Model))
		}
		if spec.MaxTokens > 0 {
			opts = append(opts, WithMaxTokens(spec.MaxTokens))
		}
		if spec.Temperature != nil {
			opts = append(opts, WithTemperature(*spec.Temperature))
		}
		return NewGollmAdapter(backend, opts...)
	default:
		return nil, fmt.Errorf("unknown adapter kind %q", spec.Kind)
	}
}

// CapabilitiesForKind returns the capability set an adapter kind serves.
func CapabilitiesForKind(kind string) []Capability {
	switch kind {
	case KindOpenAI:
		return []Capability{CapabilityChat, CapabilityEmbed, CapabilityVision}
	case KindAnthropic:
		return []Capability{CapabilityChat, CapabilityVision}
	case KindOllama:
		return []Capability{CapabilityChat, CapabilityEmbed}
	case KindGollm:
		return []Capability{CapabilityChat}
	default:
		return nil
	}
}
