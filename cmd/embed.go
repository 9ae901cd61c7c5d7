package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Backfill embeddings for documents that have none",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "embed")
		if err != nil {
			return err
		}
		defer env.Close()

		batchSize, _ := cmd.Flags().GetInt("batch-size")
		rep, err := env.EmbedPending(ctx, batchSize)
		_ = printJSON(os.Stdout, rep)
		return err
	},
}

func init() {
	embedCmd.Flags().Int("batch-size", 0, "documents per embedding request (default from config)")
	rootCmd.AddCommand(embedCmd)
}
