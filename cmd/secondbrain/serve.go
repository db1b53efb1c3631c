package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"second-brain/internal/server"
	"second-brain/internal/tracer"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the journal context and chat HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	shutdownTracer := tracer.InitTracer(ctx, a.cfg.App.OtelEnabled, a.cfg.App.OtelEndpoint, a.log)
	defer func() { _ = shutdownTracer(context.Background()) }()

	infoColor.Fprintf(os.Stderr, "serving on http://localhost:%s/api\n", a.cfg.App.Port)
	return server.New(a.container).Run(ctx)
}
