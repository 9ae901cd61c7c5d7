package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Unattributed news ingestion",
}

var newsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Search the configured news queries and store new articles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "news")
		if err != nil {
			return err
		}
		defer env.Close()

		rep, err := env.FetchNews(ctx)
		_ = printJSON(os.Stdout, rep)
		return err
	},
}

func init() {
	newsCmd.AddCommand(newsFetchCmd)
	rootCmd.AddCommand(newsCmd)
}
