package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/monitoring"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing pipeline runs and summarizing their health.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		account, _ := cmd.Flags().GetString("account")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")

		filter := model.RunFilter{
			Kind:        model.RunKind(kind),
			AccountSlug: account,
			Status:      model.RunStatus(status),
			Limit:       limit,
		}
		if since > 0 {
			filter.CreatedAfter = time.Now().Add(-since)
		}

		runs, err := st.ListRunLogs(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs health --

var runsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Summarize recent runs and the embedding backlog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lookback, _ := cmd.Flags().GetInt("lookback-hours")
		if lookback <= 0 {
			lookback = cfg.Monitoring.LookbackHours
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, lookback)
		if err != nil {
			return eris.Wrap(err, "runs health")
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)
		formatHealth(os.Stdout, snap, alerts)

		if send, _ := cmd.Flags().GetBool("alert"); send {
			alerter.SendAlerts(ctx, alerts)
		}
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("kind", "", "filter by run kind (ingest, news, classify, embed, briefing)")
	runsListCmd.Flags().String("account", "", "filter by account slug")
	runsListCmd.Flags().String("status", "", "filter by status (success, error, no_recent_activity)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Duration("since", 0, "only runs newer than this (e.g. 24h)")

	runsHealthCmd.Flags().Int("lookback-hours", 0, "window to summarize (default from config)")
	runsHealthCmd.Flags().Bool("alert", false, "send triggered alerts to the configured webhook")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsHealthCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.PipelineRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tACCOUNT\tSTATUS\tPROCESSED\tERROR_TYPE\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t------\t---------\t----------\t-------\t--------")

	for _, r := range runs {
		dur := (time.Duration(r.DurationMs) * time.Millisecond).Round(time.Millisecond).String()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Kind,
			r.AccountSlug,
			r.Status,
			r.Processed,
			r.ErrorType,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatHealth writes a snapshot and any triggered alerts to out.
func formatHealth(out io.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\tlast %dh\n", snap.LookbackHours)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", snap.RunsTotal)
	_, _ = fmt.Fprintf(w, "Success:\t%d\n", snap.RunsSuccess)
	_, _ = fmt.Fprintf(w, "No recent activity:\t%d\n", snap.RunsNoActivity)
	_, _ = fmt.Fprintf(w, "Error:\t%d\n", snap.RunsError)
	_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%%\n", snap.FailureRate*100)
	_, _ = fmt.Fprintf(w, "Embedding backlog:\t%d\n", snap.EmbeddingBacklog)

	kinds := make([]string, 0, len(snap.ByKind))
	for k := range snap.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ks := snap.ByKind[model.RunKind(k)]
		_, _ = fmt.Fprintf(w, "  %s:\t%d runs, %d errors, %d processed\n", k, ks.Total, ks.Error, ks.Processed)
	}

	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "ALERT [%s]:\t%s\n", a.Severity, a.Message)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
