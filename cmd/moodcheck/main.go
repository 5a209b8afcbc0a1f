// Package main provides the CLI entrypoint for moodcheck.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/abelbrown/moodcheck/internal/config"
	"github.com/abelbrown/moodcheck/internal/logging"
	"github.com/abelbrown/moodcheck/internal/otel"
	"github.com/abelbrown/moodcheck/internal/store"
)

var (
	configPath string
	inputPath  string
	workers    int
	seed       int64
	verbose    bool
	logToFile  bool
	noEvents   bool
)

// app carries what every subcommand needs once the config is loaded.
type app struct {
	cfg    *config.Config
	events *otel.Logger
	runID  string
	close  func()
}

var current *app

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	teardown()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "moodcheck",
		Short:             "Build hashed sentiment datasets and evaluate a deployed classifier",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (.json, .yaml, .toml); default ~/.moodcheck/config.json")
	flags.StringVar(&inputPath, "input", "", "source records (.jsonl or .csv); overrides data.input")
	flags.IntVar(&workers, "workers", 0, "parallel workers; overrides eval.workers")
	flags.Int64Var(&seed, "seed", -1, "split seed for reproducible sets; overrides split.seed")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&logToFile, "log-file", false, "log to ~/.moodcheck/logs instead of stderr")
	flags.BoolVar(&noEvents, "no-events", false, "do not write the JSONL event log")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newEvaluateCmd())
	rootCmd.AddCommand(newCorrectionCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newEventsCmd())

	return rootCmd
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("input") {
		cfg.Data.Input = inputPath
	}
	if cmd.Flags().Changed("workers") {
		cfg.Eval.Workers = workers
	}
	if cmd.Flags().Changed("seed") && seed >= 0 {
		s := uint64(seed)
		cfg.Split.Seed = &s
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if logToFile {
		if err := logging.Init(cfg.Data.LogDir); err != nil {
			return err
		}
	} else {
		level := log.WarnLevel
		if verbose {
			level = log.DebugLevel
		}
		logging.InitWriter(os.Stderr, level)
	}

	a := &app{cfg: cfg, runID: store.NewRunID(), close: func() {}}
	if !noEvents && cfg.Data.EventLog != "" {
		events, closeEvents, err := openEventLog(cfg.Data.EventLog, a.runID)
		if err != nil {
			logging.Warn("Event log disabled", "path", cfg.Data.EventLog, "error", err)
		} else {
			a.events = events
			a.close = closeEvents
		}
	}
	a.events.Info(otel.KindStartup, "main", cmd.Name())
	current = a
	return nil
}

func teardown() {
	if current == nil {
		return
	}
	events := current.events
	events.Info(otel.KindShutdown, "main", "")
	current.close()
	if n := events.Dropped(); n > 0 {
		logging.Warn("Event log dropped events", "run", events.RunID(), "dropped", n)
	}
	logging.Close()
	current = nil
}

func openEventLog(path, runID string) (*otel.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	l := otel.NewLogger(f, runID)
	return l, func() {
		l.Close()
		f.Close()
	}, nil
}
