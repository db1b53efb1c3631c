package main

import (
	"context"
	"errors"
	"os"

	"second-brain/internal/bootstrap"
	"second-brain/internal/config"
	"second-brain/internal/pkg/logger"
	"second-brain/pkg/rag/retriever"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var verbose bool

var (
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgCyan)
)

var rootCmd = &cobra.Command{
	Use:   "secondbrain",
	Short: "Ask questions about your personal journal",
	Long: `secondbrain retrieves excerpts from a Postgres-backed journal by full-text
and embedding similarity, and grounds a local language model on them.

Configuration comes from the environment or a .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
}

// app is what a command needs once configuration has loaded.
type app struct {
	cfg       *config.Config
	log       logger.ILogger
	container *bootstrap.Container
}

func (a *app) Close() {
	if a.container != nil {
		a.container.Close()
	}
	_ = a.log.Sync()
}

// openApp loads configuration and wires the container. Commands call it after
// validating their own arguments, so a usage error never touches the database.
func openApp(ctx context.Context, isolated bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var log logger.ILogger
	switch {
	case isolated:
		log = logger.NewIsolatedLogger(cfg.App.LogFilePath)
	case verbose:
		log = logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.IsProduction(), zapcore.DebugLevel)
	default:
		log = logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.IsProduction(), zapcore.WarnLevel)
	}

	container, err := bootstrap.NewContainer(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &app{cfg: cfg, log: log, container: container}, nil
}

func printError(err error) {
	switch {
	case errors.Is(err, config.ErrConfiguration):
		failColor.Fprintf(os.Stderr, "configuration error: %v\n", err)
	case errors.Is(err, retriever.ErrConnection):
		failColor.Fprintf(os.Stderr, "cannot reach the journal database: %v\n", err)
	default:
		failColor.Fprintf(os.Stderr, "error: %v\n", err)
	}
}

func printFailures(failures []retriever.StrategyFailure) {
	for _, f := range failures {
		warnColor.Fprintf(os.Stderr, "warning: %s strategy skipped (%s): %v\n", f.Strategy, f.Kind(), f.Err)
	}
}
