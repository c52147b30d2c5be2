// Package config loads and validates the service configuration: a YAML file
// describing the provider fleet, budget, ledger, and server, overlaid with
// credentials from the environment so the file itself can stay free of
// secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/codemarcinu/ageny/llmrouter"
)

// Config is the full service configuration. It is constructed once by Load
// and treated as immutable afterwards.
type Config struct {
	Server    Server     `yaml:"server"`
	Defaults  Defaults   `yaml:"defaults"`
	Budget    Budget     `yaml:"budget"`
	Ledger    Ledger     `yaml:"ledger"`
	Logging   Logging    `yaml:"logging"`
	Providers []Provider `yaml:"providers"`
}

// Server defines the HTTP listener.
type Server struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms"`
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s Server) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

func (s Server) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMs) * time.Millisecond
}

// Defaults tune the orchestration client.
type Defaults struct {
	Temperature      *float64 `yaml:"temperature"`
	MaxTokens        *int     `yaml:"max_tokens"`
	RequestTimeoutMs int      `yaml:"request_timeout_ms"`
	MaxParallel      int      `yaml:"max_parallel"`
}

// RequestTimeout returns the per-provider attempt timeout.
func (d Defaults) RequestTimeout() time.Duration {
	return time.Duration(d.RequestTimeoutMs) * time.Millisecond
}

// Budget configures monthly spend observation.
type Budget struct {
	MonthlyUSD float64 `yaml:"monthly_usd"` // 0 disables the budget
	HardStop   bool    `yaml:"hard_stop"`
}

// Ledger configures the persistent cost ledger.
type Ledger struct {
	Path string `yaml:"path"` // empty disables the SQLite sink
}

// Logging configures log output.
type Logging struct {
	Level string `yaml:"level"`
}

// ParseLevel converts the configured level name for the logger.
func (l Logging) ParseLevel() (log.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return log.DebugLevel, nil
	case "info", "":
		return log.InfoLevel, nil
	case "warn":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	}
	return log.InfoLevel, fmt.Errorf("unknown log level %q", l.Level)
}

// Provider is one entry in the provider fleet. Fields that do not apply to a
// kind are ignored by the adapter factory.
type Provider struct {
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"`
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	Host         string   `yaml:"host"`    // ollama only
	Backend      string   `yaml:"backend"` // gollm upstream, e.g. "mistral"
	Model        string   `yaml:"model"`
	EmbedModel   string   `yaml:"embed_model"`
	MaxTokens    int      `yaml:"max_tokens"`
	Temperature  *float64 `yaml:"temperature"`
	Priority     int      `yaml:"priority"`
	Capabilities []string `yaml:"capabilities"`
}

// Configured reports whether the entry carries the credentials its kind
// needs. Ollama talks to a local daemon and needs none.
func (p Provider) Configured() bool {
	if p.Kind == llmrouter.KindOllama {
		return true
	}
	return strings.TrimSpace(p.APIKey) != ""
}

func (p Provider) capabilities() []llmrouter.Capability {
	if len(p.Capabilities) == 0 {
		return llmrouter.CapabilitiesForKind(p.Kind)
	}
	caps := make([]llmrouter.Capability, len(p.Capabilities))
	for i, c := range p.Capabilities {
		caps[i] = llmrouter.Capability(c)
	}
	return caps
}

// Secrets are the credentials read from the environment. They fill provider
// entries whose matching fields are empty in the file.
type Secrets struct {
	OpenAIKey    string `env:"OPENAI_API_KEY"`
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`
	MistralKey   string `env:"MISTRAL_API_KEY"`
	OllamaHost   string `env:"OLLAMA_HOST"`
}

// Load reads the YAML configuration from disk, overlays environment
// credentials, applies defaults, and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	var secrets Secrets
	if err := env.Parse(&secrets); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.applySecrets(secrets)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applySecrets(s Secrets) {
	for i := range c.Providers {
		p := &c.Providers[i]
		switch p.Kind {
		case llmrouter.KindOpenAI:
			if p.APIKey == "" {
				p.APIKey = s.OpenAIKey
			}
		case llmrouter.KindAnthropic:
			if p.APIKey == "" {
				p.APIKey = s.AnthropicKey
			}
		case llmrouter.KindOllama:
			if p.Host == "" {
				p.Host = s.OllamaHost
			}
		case llmrouter.KindGollm:
			if p.APIKey != "" {
				continue
			}
			switch p.Backend {
			case "openai":
				p.APIKey = s.OpenAIKey
			case "anthropic":
				p.APIKey = s.AnthropicKey
			case "mistral", "":
				p.APIKey = s.MistralKey
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutMs == 0 {
		c.Server.ReadTimeoutMs = 30000
	}
	if c.Server.WriteTimeoutMs == 0 {
		// Completions routinely run for minutes.
		c.Server.WriteTimeoutMs = 180000
	}
	if c.Defaults.RequestTimeoutMs == 0 {
		c.Defaults.RequestTimeoutMs = int(llmrouter.DefaultAttemptTimeout / time.Millisecond)
	}
	if c.Defaults.MaxParallel == 0 {
		c.Defaults.MaxParallel = llmrouter.DefaultMaxParallel
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	for i := range c.Providers {
		if c.Providers[i].Name == "" {
			c.Providers[i].Name = c.Providers[i].Kind
		}
	}
}

var validKinds = map[string]bool{
	llmrouter.KindOpenAI:    true,
	llmrouter.KindAnthropic: true,
	llmrouter.KindOllama:    true,
	llmrouter.KindGollm:     true,
}

var validCapabilities = map[string]bool{
	string(llmrouter.CapabilityChat):   true,
	string(llmrouter.CapabilityEmbed):  true,
	string(llmrouter.CapabilityVision): true,
}

// Validate performs sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Budget.MonthlyUSD < 0 {
		return fmt.Errorf("budget.monthly_usd must not be negative, got %v", c.Budget.MonthlyUSD)
	}
	if _, err := c.Logging.ParseLevel(); err != nil {
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if seen[p.Name] {
			return fmt.Errorf("provider %q: duplicate name", p.Name)
		}
		seen[p.Name] = true

		if !validKinds[p.Kind] {
			return fmt.Errorf("provider %q: unknown kind %q", p.Name, p.Kind)
		}
		for _, capability := range p.Capabilities {
			if !validCapabilities[capability] {
				return fmt.Errorf("provider %q: unknown capability %q", p.Name, capability)
			}
		}
		if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
			return fmt.Errorf("provider %q: temperature %v out of range [0, 2]", p.Name, *p.Temperature)
		}
		if p.MaxTokens < 0 {
			return fmt.Errorf("provider %q: max_tokens must not be negative", p.Name)
		}
	}
	return nil
}

// BuildRegistry constructs the provider registry the configuration
// describes, in file order. Entries missing credentials still register as
// unconfigured so the fleet stays visible to introspection; entries whose
// adapter cannot be constructed at all are skipped with a warning.
func BuildRegistry(cfg Config, logger *log.Logger) (*llmrouter.Registry, error) {
	registry := llmrouter.NewRegistry()
	for _, p := range cfg.Providers {
		adapter, err := llmrouter.NewAdapter(llmrouter.AdapterSpec{
			Kind:        p.Kind,
			Name:        p.Name,
			APIKey:      p.APIKey,
			BaseURL:     p.BaseURL,
			Host:        p.Host,
			Provider:    p.Backend,
			Model:       p.Model,
			EmbedModel:  p.EmbedModel,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
		})
		if err != nil {
			if !p.Configured() {
				logger.Warn("skipping provider without credentials", "provider", p.Name, "error", err)
				continue
			}
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}

		desc := llmrouter.ProviderDescriptor{
			Name:         p.Name,
			Capabilities: p.capabilities(),
			Priority:     p.Priority,
			Configured:   p.Configured(),
		}
		if err := registry.Register(desc, adapter); err != nil {
			return nil, err
		}
		logger.Debug("registered provider",
			"provider", p.Name, "kind", p.Kind,
			"priority", p.Priority, "configured", desc.Configured)
	}
	return registry, nil
}
