package llmrouter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	// DefaultAttemptTimeout bounds each candidate attempt so one hung
	// provider cannot stall the whole fallback chain.
	DefaultAttemptTimeout = 30 * time.Second

	// DefaultMaxParallel bounds batch worker pools.
	DefaultMaxParallel = 4
)

// Client orchestrates requests across the registered providers: strict
// priority order, bounded per-attempt timeouts, transient failures advance
// to the next candidate, validation failures abort.
type Client struct {
	registry       *Registry
	tracker        *CostTracker
	logger         *log.Logger
	attemptTimeout time.Duration
	maxParallel    int
	hardStop       bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCostTracker attaches a cost tracker. Every successful call records
// one ledger entry against the answering provider.
func WithCostTracker(tracker *CostTracker) ClientOption {
	return func(c *Client) {
		c.tracker = tracker
	}
}

// WithAttemptTimeout bounds each candidate attempt. Zero disables the
// per-attempt deadline and leaves only the caller's context.
func WithAttemptTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.attemptTimeout = d
	}
}

// WithMaxParallel bounds the batch worker pool.
func WithMaxParallel(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxParallel = n
		}
	}
}

// WithHardStop makes the client refuse new requests once the monthly budget
// is exhausted. Without it the budget is observed, never enforced.
func WithHardStop(enabled bool) ClientOption {
	return func(c *Client) {
		c.hardStop = enabled
	}
}

// NewClient builds a client over a populated registry.
func NewClient(registry *Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:       registry,
		logger:         log.New(io.Discard),
		attemptTimeout: DefaultAttemptTimeout,
		maxParallel:    DefaultMaxParallel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry exposes the provider registry for reporting surfaces.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Tracker exposes the cost tracker, nil when none is attached.
func (c *Client) Tracker() *CostTracker {
	return c.tracker
}

// Close releases adapter resources.
func (c *Client) Close() error {
	return c.registry.Close()
}

// Complete runs one chat request through the fallback chain and returns the
// normalized response from the first provider that answers. The response's
// Provider field always names the adapter that actually answered, which may
// differ from the requested model's native provider.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*NormalizedResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := c.checkBudget(); err != nil {
		return nil, err
	}

	candidates, err := c.registry.Candidates(CapabilityChat)
	if err != nil {
		return nil, err
	}
	candidates = preferProvider(candidates, req.Provider)

	logger := c.logger.With("request_id", uuid.New().String())

	var attempts []Attempt
	for _, cand := range candidates {
		name := cand.Descriptor.Name
		start := time.Now()

		raw, attemptErr := c.attemptComplete(ctx, cand.Adapter, req)
		latency := time.Since(start).Milliseconds()

		if attemptErr == nil {
			resp, applied, normErr := normalizeFill(raw, req.Model, name)
			if normErr != nil {
				// A malformed payload is a contract violation, not an
				// availability problem. Trying another provider would
				// hide it.
				logger.Error("provider returned malformed response",
					"provider", name, "error", normErr)
				return nil, normErr
			}
			if len(applied) > 0 {
				logger.Debug("normalization defaults applied",
					"provider", name, "fields", strings.Join(applied, ","))
			}
			resp.Provider = name
			c.applyCatalogCost(&resp)
			if c.tracker != nil {
				c.tracker.Record(name, ServiceChat, resp.Usage.TotalTokens, resp.Cost.Total)
			}
			logger.Debug("completion served",
				"provider", name, "model", resp.Model,
				"tokens", resp.Usage.TotalTokens, "latency_ms", latency)
			return &resp, nil
		}

		attemptErr = classifyAdapterError(name, attemptErr)
		if IsValidation(attemptErr) {
			logger.Warn("provider rejected request",
				"provider", name, "error", attemptErr)
			return nil, attemptErr
		}
		if ctx.Err() != nil {
			return nil, &AbortError{CoreError{
				Message: "request cancelled during fallback",
				Cause:   ctx.Err(),
			}}
		}

		attempts = append(attempts, Attempt{
			Provider:  name,
			Class:     ClassTransient,
			Reason:    failureReason(attemptErr),
			LatencyMS: latency,
			Err:       attemptErr,
		})
		logger.Warn("provider attempt failed, trying next candidate",
			"provider", name, "reason", failureReason(attemptErr), "latency_ms", latency)
	}

	return nil, &AllProvidersFailedError{
		CoreError:  CoreError{Message: fmt.Sprintf("all %d providers failed", len(attempts))},
		Capability: CapabilityChat,
		Attempts:   attempts,
	}
}

// Embed runs one embedding request through the fallback chain.
func (c *Client) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := c.checkBudget(); err != nil {
		return nil, err
	}

	candidates, err := c.registry.Candidates(CapabilityEmbed)
	if err != nil {
		return nil, err
	}
	candidates = preferProvider(candidates, req.Provider)

	logger := c.logger.With("request_id", uuid.New().String())

	var attempts []Attempt
	for _, cand := range candidates {
		name := cand.Descriptor.Name
		start := time.Now()

		vector, attemptErr := c.attemptEmbed(ctx, cand.Adapter, req.Text)
		latency := time.Since(start).Milliseconds()

		if attemptErr == nil {
			resp := c.buildEmbedResponse(cand, req, vector)
			if c.tracker != nil {
				c.tracker.Record(name, ServiceEmbed, resp.Usage.TotalTokens, resp.Cost.Total)
			}
			logger.Debug("embedding served",
				"provider", name, "model", resp.Model,
				"dimensions", len(resp.Vector), "latency_ms", latency)
			return &resp, nil
		}

		attemptErr = classifyAdapterError(name, attemptErr)
		if IsValidation(attemptErr) {
			logger.Warn("provider rejected embedding request",
				"provider", name, "error", attemptErr)
			return nil, attemptErr
		}
		if ctx.Err() != nil {
			return nil, &AbortError{CoreError{
				Message: "request cancelled during fallback",
				Cause:   ctx.Err(),
			}}
		}

		attempts = append(attempts, Attempt{
			Provider:  name,
			Class:     ClassTransient,
			Reason:    failureReason(attemptErr),
			LatencyMS: latency,
			Err:       attemptErr,
		})
		logger.Warn("embedding attempt failed, trying next candidate",
			"provider", name, "reason", failureReason(attemptErr), "latency_ms", latency)
	}

	return nil, &AllProvidersFailedError{
		CoreError:  CoreError{Message: fmt.Sprintf("all %d providers failed", len(attempts))},
		Capability: CapabilityEmbed,
		Attempts:   attempts,
	}
}

func (c *Client) attemptComplete(ctx context.Context, adapter ProviderAdapter, req ChatRequest) (RawResponse, error) {
	if c.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()
	}
	return adapter.Complete(ctx, req)
}

func (c *Client) attemptEmbed(ctx context.Context, adapter ProviderAdapter, text string) ([]float32, error) {
	if c.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()
	}
	return adapter.Embed(ctx, text)
}

func (c *Client) checkBudget() error {
	if !c.hardStop || c.tracker == nil {
		return nil
	}
	over, spent, budget := c.tracker.OverBudget()
	if !over {
		return nil
	}
	return &BudgetExceededError{
		CoreError: CoreError{Message: "monthly budget exhausted"},
		Spent:     spent,
		Budget:    budget,
	}
}

// applyCatalogCost fills in the cost from the model catalog when the
// provider's raw payload carried none.
func (c *Client) applyCatalogCost(resp *NormalizedResponse) {
	if !resp.Cost.IsZero() {
		return
	}
	info := GetModelInfo(resp.Model)
	if info == nil {
		return
	}
	resp.Cost = CostForUsage(info, resp.Usage)
}

// buildEmbedResponse resolves the effective model, estimates usage, and
// prices the call. Embedding payloads rarely carry usage, so tokens are
// estimated from the input text.
func (c *Client) buildEmbedResponse(cand Candidate, req EmbedRequest, vector []float32) EmbedResponse {
	name := cand.Descriptor.Name

	model := req.Model
	if model == "" {
		if m, ok := cand.Adapter.(EmbeddingModeler); ok {
			model = m.EmbeddingModel()
		}
	}
	if model == "" {
		if info := DefaultEmbeddingModel(name); info != nil {
			model = info.ID
		} else {
			model = UnknownModel
		}
	}

	usage := Usage{PromptTokens: EstimateTokens(req.Text)}
	usage.TotalTokens = usage.PromptTokens

	var cost Cost
	if info := GetModelInfo(model); info != nil {
		cost = CostForUsage(info, usage)
	}

	return EmbedResponse{
		Vector:   vector,
		Model:    model,
		Provider: name,
		Usage:    usage,
		Cost:     cost,
	}
}

// preferProvider moves the named candidate to the front of the chain. The
// preference does not filter: when the named provider fails the remaining
// candidates are still tried in priority order.
func preferProvider(candidates []Candidate, name string) []Candidate {
	if name == "" {
		return candidates
	}
	for i, cand := range candidates {
		if cand.Descriptor.Name != name {
			continue
		}
		if i == 0 {
			return candidates
		}
		out := make([]Candidate, 0, len(candidates))
		out = append(out, cand)
		out = append(out, candidates[:i]...)
		out = append(out, candidates[i+1:]...)
		return out
	}
	return candidates
}

// classifyAdapterError leaves already-classified errors alone and maps
// anything else through the message classifier, so test doubles and raw
// context errors still land in the taxonomy.
func classifyAdapterError(provider string, err error) error {
	var ve *ProviderValidationError
	var te *ProviderTransientError
	var ae *AbortError
	if errors.As(err, &ve) || errors.As(err, &te) || errors.As(err, &ae) {
		return err
	}
	return ClassifyMessage(provider, err)
}
