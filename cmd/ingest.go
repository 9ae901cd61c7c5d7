package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Crawl account seeds into deduplicated documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slug, _ := cmd.Flags().GetString("account")
		all, _ := cmd.Flags().GetBool("all")
		if err := exactlyOne(slug, all); err != nil {
			return err
		}

		env, err := initEnv(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		if all {
			summary, err := env.IngestAll(ctx)
			logSummary(summary)
			if summary != nil {
				_ = printJSON(os.Stdout, summary)
			}
			return err
		}

		rep, err := env.IngestAccount(ctx, slug)
		_ = printJSON(os.Stdout, rep)
		return err
	},
}

// exactlyOne checks the --account / --all pair shared by per-account commands.
func exactlyOne(slug string, all bool) error {
	if (slug == "") == !all {
		return eris.New("exactly one of --account or --all is required")
	}
	return nil
}

func init() {
	ingestCmd.Flags().String("account", "", "account slug to ingest")
	ingestCmd.Flags().Bool("all", false, "ingest every account with an active seed")
	rootCmd.AddCommand(ingestCmd)
}
