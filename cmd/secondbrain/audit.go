package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"second-brain/internal/config"
	"second-brain/pkg/events"
	pktNats "second-brain/pkg/nats"

	"github.com/spf13/cobra"
)

var (
	auditType    string
	auditDurable string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Follow retrieval audit events from NATS",
	Long: `Prints one JSON line per audit event until interrupted. Events carry a
hash of the query, row counts per strategy and skipped strategies, never
journal text.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().StringVar(&auditType, "type", "*", "Event type to follow, e.g. "+events.TypeContextRetrieved)
	auditCmd.Flags().StringVar(&auditDurable, "durable", "", "Durable consumer name to resume from")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.App.NatsURL == "" {
		return fmt.Errorf("%w: NATS_URL is not set", config.ErrConfiguration)
	}

	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		return err
	}
	defer sub.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	err = sub.Subscribe(ctx, auditType, auditDurable, func(_ context.Context, event events.Event) error {
		return enc.Encode(map[string]interface{}{
			"type":        event.EventType(),
			"occurred_at": event.Timestamp(),
			"data":        event.Payload(),
		})
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
