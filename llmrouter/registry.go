package llmrouter

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderDescriptor describes one registered adapter. Descriptors are
// immutable after registration; the registry hands out copies.
type ProviderDescriptor struct {
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities"`
	// Priority orders candidates; lower is tried first.
	Priority int `json:"priority"`
	// Configured is derived from credential presence at construction time.
	// Unconfigured providers stay registered for introspection but are
	// never candidates.
	Configured bool `json:"configured"`
}

// HasCapability reports whether the descriptor advertises cap.
func (d ProviderDescriptor) HasCapability(cap Capability) bool {
	for _, c := range d.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Candidate pairs a descriptor with its adapter in a candidate list.
type Candidate struct {
	Descriptor ProviderDescriptor
	Adapter    ProviderAdapter
}

type registration struct {
	descriptor ProviderDescriptor
	adapter    ProviderAdapter
	order      int // registration order, breaks priority ties
}

// Registry holds the ordered, configuration-driven set of provider adapters.
// Registration happens once at startup; lookups are concurrent-safe reads.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an adapter under the given descriptor. Names must be unique
// and non-empty, the capability set non-empty, and the adapter non-nil.
func (r *Registry) Register(desc ProviderDescriptor, adapter ProviderAdapter) error {
	if desc.Name == "" {
		return &ConfigurationError{CoreError: CoreError{Message: "provider descriptor must have a name"}}
	}
	if adapter == nil {
		return &ConfigurationError{CoreError: CoreError{Message: fmt.Sprintf("provider %q registered with nil adapter", desc.Name)}}
	}
	if len(desc.Capabilities) == 0 {
		return &ConfigurationError{CoreError: CoreError{Message: fmt.Sprintf("provider %q declares no capabilities", desc.Name)}}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.descriptor.Name == desc.Name {
			return &ConfigurationError{CoreError: CoreError{Message: fmt.Sprintf("provider %q already registered", desc.Name)}}
		}
	}

	desc.Capabilities = append([]Capability(nil), desc.Capabilities...)
	r.entries = append(r.entries, registration{
		descriptor: desc,
		adapter:    adapter,
		order:      len(r.entries),
	})
	return nil
}

// Candidates returns the configured adapters for a capability, sorted by
// priority ascending (registration order breaks ties). An empty result is a
// ConfigurationError: with no configured provider there is nothing the
// fallback loop could ever do.
func (r *Registry) Candidates(cap Capability) ([]Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []registration
	for _, e := range r.entries {
		if e.descriptor.Configured && e.descriptor.HasCapability(cap) {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return nil, &ConfigurationError{
			CoreError:  CoreError{Message: fmt.Sprintf("no configured provider for capability %q", cap)},
			Capability: cap,
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].descriptor.Priority != matched[j].descriptor.Priority {
			return matched[i].descriptor.Priority < matched[j].descriptor.Priority
		}
		return matched[i].order < matched[j].order
	})

	candidates := make([]Candidate, len(matched))
	for i, e := range matched {
		candidates[i] = Candidate{Descriptor: e.descriptor, Adapter: e.adapter}
	}
	return candidates, nil
}

// Adapter returns the adapter registered under name.
func (r *Registry) Adapter(name string) (ProviderAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.descriptor.Name == name {
			return e.adapter, true
		}
	}
	return nil, false
}

// Descriptors returns a copy of every registered descriptor, configured or
// not, sorted by priority then registration order.
func (r *Registry) Descriptors() []ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]registration, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].descriptor.Priority != out[j].descriptor.Priority {
			return out[i].descriptor.Priority < out[j].descriptor.Priority
		}
		return out[i].order < out[j].order
	})

	descs := make([]ProviderDescriptor, len(out))
	for i, e := range out {
		descs[i] = e.descriptor
	}
	return descs
}

// Close releases resources held by adapters implementing Closer.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for _, e := range r.entries {
		if closer, ok := e.adapter.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
