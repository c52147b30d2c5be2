package cmd

import (
	"strings"
	"testing"

	"github.com/codemarcinu/ageny/internal/config"
)

func TestServeRejectsBadPortOverride(t *testing.T) {
	defer saveCmdVars(t)()
	scriptStack(t, config.Config{}, nil, &stubAdapter{name: "alpha", text: "Hi"})

	err := runCLI("serve", "--port", "99999")
	if err == nil {
		t.Fatal("expected error for out-of-range port")
	}
	if !strings.Contains(err.Error(), "valid TCP port") {
		t.Errorf("expected port validation message, got %q", err.Error())
	}
}
