package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List generative models, without the embedding model",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.container.ChatbotService.ListModels(cmd.Context())
	if err != nil {
		return err
	}
	for _, m := range res.Models {
		fmt.Fprintln(cmd.OutOrStdout(), m)
	}
	return nil
}
