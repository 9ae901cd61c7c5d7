package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/account-intel/internal/accounts"
	"github.com/sells-group/account-intel/internal/model"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the account roster and crawl seeds",
}

var accountsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Upsert accounts and seeds from a YAML roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		file, err := accounts.LoadFile(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := accounts.Import(ctx, st, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Imported %d accounts, %d seeds.\n", res.Accounts, res.Seeds)
		return nil
	},
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		seeded, _ := cmd.Flags().GetBool("with-seeds")
		var list []model.Account
		if seeded {
			list, err = st.ListAccountsWithActiveSeeds(ctx)
		} else {
			list, err = st.ListAccounts(ctx)
		}
		if err != nil {
			return eris.Wrap(err, "accounts list")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No accounts found.")
			return nil
		}
		formatAccounts(os.Stdout, list)
		return nil
	},
}

func init() {
	accountsListCmd.Flags().Bool("with-seeds", false, "only accounts with at least one active seed")

	accountsCmd.AddCommand(accountsImportCmd)
	accountsCmd.AddCommand(accountsListCmd)
	rootCmd.AddCommand(accountsCmd)
}

func formatAccounts(out io.Writer, list []model.Account) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SLUG\tNAME\tLOCATION\tWEBSITE")
	for _, a := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Slug, a.Name, a.Location, a.Website)
	}
	_ = w.Flush()
}
