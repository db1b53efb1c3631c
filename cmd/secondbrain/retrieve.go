package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"second-brain/pkg/rag/retriever"

	"github.com/spf13/cobra"
)

var retrieveJSON bool

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query-text>",
	Short: "Print the journal context assembled for a query",
	Long: `Runs every enabled retrieval strategy and prints the fused excerpts, one
per paragraph. Skipped strategies are reported on stderr. An unreachable
database is an error.`,
	RunE: runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "Print rows and failures as JSON")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return cmd.Usage()
	}

	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if retrieveJSON {
		res, err := a.container.ContextService.GetContext(cmd.Context(), query)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	block, err := a.container.Retriever.Retrieve(cmd.Context(), query)
	if err != nil {
		return err
	}
	printFailures(block.Failures)

	if block.Empty() {
		warnColor.Fprintln(os.Stderr, retriever.NoContextMarker)
		return nil
	}
	_, err = fmt.Fprintln(out, block.Text())
	return err
}
