package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Attribute processed, unattributed news documents to accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "classify")
		if err != nil {
			return err
		}
		defer env.Close()

		rep, err := env.ClassifyNews(ctx)
		_ = printJSON(os.Stdout, rep)
		return err
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
