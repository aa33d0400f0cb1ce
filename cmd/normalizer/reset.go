package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var resetSource string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear processed flags so records can be re-run",
	Long: `Clear the processed flag on raw records so the next cycle picks them up
again, e.g. after fixing a pattern in a source configuration. Restricted to
one source with --source; resets every source otherwise. The duplicate-safe
insert protocol makes re-processing idempotent.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().StringVar(&resetSource, "source", "", "only reset records for this source")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	ctx := context.Background()
	st, err := openStore(ctx, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	n, err := st.ResetProcessed(ctx, resetSource)
	if err != nil {
		logger.Error("reset failed", "error", err)
		os.Exit(1)
	}

	logger.Info("reset complete", "records", n, "source", resetSource)
	return nil
}
