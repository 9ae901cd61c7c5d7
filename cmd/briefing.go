package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var briefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Write narrative briefings from recently crawled documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slug, _ := cmd.Flags().GetString("account")
		all, _ := cmd.Flags().GetBool("all")
		if err := exactlyOne(slug, all); err != nil {
			return err
		}
		dateFlag, _ := cmd.Flags().GetString("date")
		date, err := parseDate(dateFlag)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "briefing")
		if err != nil {
			return err
		}
		defer env.Close()

		if all {
			summary, err := env.BriefAll(ctx, date)
			logSummary(summary)
			if summary != nil {
				_ = printJSON(os.Stdout, summary)
			}
			return err
		}

		rep, err := env.BriefAccount(ctx, slug, date)
		_ = printJSON(os.Stdout, rep)
		return err
	},
}

func init() {
	briefingCmd.Flags().String("account", "", "account slug to brief")
	briefingCmd.Flags().Bool("all", false, "brief every account")
	briefingCmd.Flags().String("date", "", "briefing date YYYY-MM-DD (default today)")
	rootCmd.AddCommand(briefingCmd)
}
