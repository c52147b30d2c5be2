// Package cmd holds the ageny CLI commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/codemarcinu/ageny/internal/config"
	"github.com/codemarcinu/ageny/internal/ledger"
	"github.com/codemarcinu/ageny/llmrouter"
	"github.com/codemarcinu/ageny/tutor"
)

var (
	configFlag  string
	verboseFlag bool
)

// ioOut is where command output goes. Tests override it.
var ioOut io.Writer = os.Stdout

var rootCmd = &cobra.Command{
	Use:   "ageny",
	Short: "Route LLM calls across providers with fallback, cost tracking, and prompt coaching",
	Long: `ageny routes chat and embedding calls across configured LLM providers in
priority order, falling back on transient failures, recording the cost of
every successful call, and optionally coaching prompts through a
clarify-then-suggest tutor loop.`,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "ageny.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "enable debug logging")
}

// Execute runs the CLI with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func newLogger(cfg config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if verboseFlag {
		logger.SetLevel(log.DebugLevel)
		return logger
	}
	// Load already validated the level; ParseLevel falls back to info.
	level, _ := cfg.Logging.ParseLevel()
	logger.SetLevel(level)
	return logger
}

// stack bundles the wired pipeline for one command invocation.
type stack struct {
	cfg     config.Config
	logger  *log.Logger
	client  *llmrouter.Client
	machine *tutor.Machine
	store   *ledger.Store
}

func (s *stack) Close() {
	if err := s.client.Close(); err != nil {
		s.logger.Warn("closing adapters", "error", err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("closing cost ledger", "error", err)
		}
	}
}

// buildStack loads configuration and wires the pipeline behind every command.
// Declared as a variable so tests can substitute a scripted stack.
var buildStack = func(ctx context.Context) (*stack, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	registry, err := config.BuildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	trackerOpts := []llmrouter.CostTrackerOption{
		llmrouter.WithMonthlyBudget(cfg.Budget.MonthlyUSD),
		llmrouter.WithCostLogger(logger),
	}
	var store *ledger.Store
	if cfg.Ledger.Path != "" {
		store, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("opening cost ledger: %w", err)
		}
		trackerOpts = append(trackerOpts, llmrouter.WithLedgerSink(store))
	}
	tracker := llmrouter.NewCostTracker(trackerOpts...)

	// Durable spend survives restarts: the current month's total is read
	// back from the ledger so budget checks start from reality.
	if store != nil {
		month := time.Now().Format("2006-01")
		spend, err := store.MonthSpend(ctx, month)
		if err != nil {
			logger.Warn("reading month spend from ledger", "error", err)
		} else {
			tracker.SeedMonth(month, spend)
		}
	}

	client := llmrouter.NewClient(registry,
		llmrouter.WithLogger(logger),
		llmrouter.WithCostTracker(tracker),
		llmrouter.WithAttemptTimeout(cfg.Defaults.RequestTimeout()),
		llmrouter.WithMaxParallel(cfg.Defaults.MaxParallel),
		llmrouter.WithHardStop(cfg.Budget.HardStop),
	)
	machine := tutor.NewMachine(client, tutor.WithLogger(logger))

	return &stack{cfg: cfg, logger: logger, client: client, machine: machine, store: store}, nil
}
