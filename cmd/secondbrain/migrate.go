package main

import (
	"os"

	"second-brain/pkg/database"

	"github.com/spf13/cobra"
)

var migrateDims int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Add the embedding column and vector index to journal.events",
	Long: `Creates the pgvector extension, the journal.events.embedding column and an
HNSW index for the configured RETRIEVAL_VECTOR_METRIC. Safe to run repeatedly.
The journal tables and search functions must already exist.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().IntVar(&migrateDims, "dims", 768, "Embedding dimensions of the configured model")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	err = database.MigrateEmbeddingSchema(cmd.Context(), a.container.DB, database.EmbeddingSchema{
		Dimensions: migrateDims,
		Metric:     a.cfg.Retrieval.Metric,
	})
	if err != nil {
		return err
	}
	infoColor.Fprintln(os.Stderr, "embedding schema is up to date")
	return nil
}
