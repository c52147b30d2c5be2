package cmd

import (
	"strings"
	"testing"

	"github.com/codemarcinu/ageny/internal/config"
)

func TestProvidersCommand(t *testing.T) {
	defer saveCmdVars(t)()
	out := scriptStack(t, config.Config{}, nil,
		&stubAdapter{name: "alpha", text: "Hi"},
		&stubAdapter{name: "beta", text: "Hi"},
	)

	if err := runCLI("providers"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "alpha") || !strings.Contains(got, "beta") {
		t.Errorf("expected both providers listed, got %q", got)
	}
	if !strings.Contains(got, "priority=1") {
		t.Errorf("expected priority shown, got %q", got)
	}
	if !strings.Contains(got, "ready") {
		t.Errorf("expected configured state shown, got %q", got)
	}
	if !strings.Contains(got, "chat") {
		t.Errorf("expected capabilities shown, got %q", got)
	}
}
