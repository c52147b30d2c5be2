package llmrouter

import (
	"errors"
	"testing"
)

func register(t *testing.T, reg *Registry, name string, priority int, configured bool, caps ...Capability) {
	t.Helper()
	err := reg.Register(ProviderDescriptor{
		Name:         name,
		Capabilities: caps,
		Priority:     priority,
		Configured:   configured,
	}, newMockAdapter(name, "ok"))
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func TestRegistryCandidatesOrder(t *testing.T) {
	reg := NewRegistry()
	register(t, reg, "cheap", 2, true, CapabilityChat)
	register(t, reg, "fast", 1, true, CapabilityChat)
	register(t, reg, "local", 3, true, CapabilityChat)

	candidates, err := reg.Candidates(CapabilityChat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"fast", "cheap", "local"}
	if len(candidates) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(candidates))
	}
	for i, name := range want {
		if candidates[i].Descriptor.Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, candidates[i].Descriptor.Name)
		}
	}
}

func TestRegistryCandidatesTieBreaksOnRegistration(t *testing.T) {
	reg := NewRegistry()
	register(t, reg, "first", 1, true, CapabilityChat)
	register(t, reg, "second", 1, true, CapabilityChat)

	candidates, err := reg.Candidates(CapabilityChat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates[0].Descriptor.Name != "first" || candidates[1].Descriptor.Name != "second" {
		t.Errorf("equal priorities must keep registration order, got %q then %q",
			candidates[0].Descriptor.Name, candidates[1].Descriptor.Name)
	}
}

func TestRegistryCandidatesFiltersCapability(t *testing.T) {
	reg := NewRegistry()
	register(t, reg, "chatty", 1, true, CapabilityChat)
	register(t, reg, "embedder", 2, true, CapabilityChat, CapabilityEmbed)

	candidates, err := reg.Candidates(CapabilityEmbed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Descriptor.Name != "embedder" {
		t.Errorf("capability filter failed: %+v", candidates)
	}
}

func TestRegistryCandidatesFiltersUnconfigured(t *testing.T) {
	reg := NewRegistry()
	register(t, reg, "ready", 2, true, CapabilityChat)
	register(t, reg, "unkeyed", 1, false, CapabilityChat)

	candidates, err := reg.Candidates(CapabilityChat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Descriptor.Name != "ready" {
		t.Errorf("configured filter failed: %+v", candidates)
	}
}

func TestRegistryCandidatesEmpty(t *testing.T) {
	reg := NewRegistry()
	register(t, reg, "chatty", 1, true, CapabilityChat)

	_, err := reg.Candidates(CapabilityVision)
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %T (%v)", err, err)
	}
	if confErr.Capability != CapabilityVision {
		t.Errorf("expected capability %q, got %q", CapabilityVision, confErr.Capability)
	}
}

func TestRegistryRegisterRejects(t *testing.T) {
	reg := NewRegistry()
	adapter := newMockAdapter("ok", "x")

	cases := []struct {
		name    string
		desc    ProviderDescriptor
		adapter ProviderAdapter
	}{
		{"empty name", ProviderDescriptor{Capabilities: []Capability{CapabilityChat}}, adapter},
		{"nil adapter", ProviderDescriptor{Name: "x", Capabilities: []Capability{CapabilityChat}}, nil},
		{"no capabilities", ProviderDescriptor{Name: "x"}, adapter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := reg.Register(tc.desc, tc.adapter); err == nil {
				t.Error("expected registration to fail")
			}
		})
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	register(t, reg, "dup", 1, true, CapabilityChat)

	err := reg.Register(ProviderDescriptor{
		Name:         "dup",
		Capabilities: []Capability{CapabilityChat},
		Priority:     2,
		Configured:   true,
	}, newMockAdapter("dup", "x"))
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegistryDescriptors(t *testing.T) {
	reg := NewRegistry()
	register(t, reg, "b", 2, true, CapabilityChat)
	register(t, reg, "a", 1, false, CapabilityChat, CapabilityEmbed)

	descs := reg.Descriptors()
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}
	if descs[0].Name != "a" || descs[1].Name != "b" {
		t.Errorf("descriptors out of priority order: %q then %q", descs[0].Name, descs[1].Name)
	}

	// Mutating the returned slice must not touch the registry.
	descs[0].Configured = true
	fresh := reg.Descriptors()
	if fresh[0].Configured {
		t.Error("Descriptors leaked internal state")
	}
}

type closableAdapter struct {
	mockAdapter
	closed bool
}

func (c *closableAdapter) Close() error {
	c.closed = true
	return nil
}

func TestRegistryClose(t *testing.T) {
	reg := NewRegistry()
	closable := &closableAdapter{mockAdapter: mockAdapter{name: "closable", raw: RawText("x")}}
	err := reg.Register(ProviderDescriptor{
		Name:         "closable",
		Capabilities: []Capability{CapabilityChat},
		Priority:     1,
		Configured:   true,
	}, closable)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := reg.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closable.closed {
		t.Error("Close did not reach the adapter")
	}
}
