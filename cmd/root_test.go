package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/codemarcinu/ageny/internal/config"
	"github.com/codemarcinu/ageny/internal/ledger"
	"github.com/codemarcinu/ageny/llmrouter"
	"github.com/codemarcinu/ageny/tutor"
)

var errTest = errors.New("scripted failure")

// stubAdapter is a canned ProviderAdapter for CLI tests.
type stubAdapter struct {
	name string
	text string
	err  error
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Complete(ctx context.Context, req llmrouter.ChatRequest) (llmrouter.RawResponse, error) {
	if a.err != nil {
		return llmrouter.RawResponse{}, a.err
	}
	return llmrouter.RawText(a.text), nil
}

func (a *stubAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1}, nil
}

// saveCmdVars saves the package-level vars and returns a restore function.
func saveCmdVars(t *testing.T) func() {
	t.Helper()
	origBuildStack := buildStack
	origIoOut := ioOut
	origConfig := configFlag
	origVerbose := verboseFlag
	origChatModel := chatModelFlag
	origChatProvider := chatProviderFlag
	origChatTutor := chatTutorFlag
	origChatConversation := chatConversationFlag
	origPort := portFlag
	origCostsMonth := costsMonthFlag
	return func() {
		buildStack = origBuildStack
		ioOut = origIoOut
		configFlag = origConfig
		verboseFlag = origVerbose
		chatModelFlag = origChatModel
		chatProviderFlag = origChatProvider
		chatTutorFlag = origChatTutor
		chatConversationFlag = origChatConversation
		portFlag = origPort
		costsMonthFlag = origCostsMonth
	}
}

// scriptStack wires a stack over the given adapters and installs it as the
// build function. The returned buffer captures command output.
func scriptStack(t *testing.T, cfg config.Config, store *ledger.Store, adapters ...llmrouter.ProviderAdapter) *bytes.Buffer {
	t.Helper()

	reg := llmrouter.NewRegistry()
	for i, adapter := range adapters {
		desc := llmrouter.ProviderDescriptor{
			Name:         adapter.Name(),
			Capabilities: []llmrouter.Capability{llmrouter.CapabilityChat, llmrouter.CapabilityEmbed},
			Priority:     i + 1,
			Configured:   true,
		}
		if err := reg.Register(desc, adapter); err != nil {
			t.Fatalf("register %s: %v", adapter.Name(), err)
		}
	}

	logger := log.New(io.Discard)
	client := llmrouter.NewClient(reg,
		llmrouter.WithLogger(logger),
		llmrouter.WithCostTracker(llmrouter.NewCostTracker()),
	)
	st := &stack{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		machine: tutor.NewMachine(client),
		store:   store,
	}
	buildStack = func(ctx context.Context) (*stack, error) {
		return st, nil
	}

	out := &bytes.Buffer{}
	ioOut = out
	return out
}

func runCLI(args ...string) error {
	rootCmd.SetArgs(args)
	return Execute(context.Background())
}
