package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var embedBatch int

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate embeddings for journal events that have none",
	Long: `Pages through journal events with a NULL embedding and embeds each one
with the configured embedding provider, so the vector strategy can reach them.
Events that fail stay NULL and are retried on the next run.`,
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().IntVar(&embedBatch, "batch", 100, "Events fetched per page")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.container.ConsumerService.Consume(ctx); err != nil {
		return err
	}

	summary, err := a.container.BackfillService.Run(ctx, embedBatch)
	if summary != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "published %d, embedded %d, failed %d, remaining %d\n",
			summary.Published, summary.Embedded, summary.Failed, summary.Remaining)
		if summary.Failed > 0 {
			warnColor.Fprintf(os.Stderr, "warning: %d events could not be embedded, see %s\n", summary.Failed, a.cfg.App.LogFilePath)
		}
	}
	return err
}
