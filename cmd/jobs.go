package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-intel/internal/batch"
	"github.com/sells-group/account-intel/internal/briefing"
	"github.com/sells-group/account-intel/internal/classify"
	"github.com/sells-group/account-intel/internal/embed"
	"github.com/sells-group/account-intel/internal/ingest"
	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/runlog"
)

// unitReport is the structured result of a single recorded unit run.
type unitReport struct {
	Run    *model.PipelineRun `json:"run"`
	Result any                `json:"result,omitempty"`
}

func report(res any, run *model.PipelineRun) *unitReport {
	return &unitReport{Run: run, Result: res}
}

// IngestAccount crawls one account's seeds and records the run.
func (e *appEnv) IngestAccount(ctx context.Context, slug string) (*unitReport, error) {
	res, run, err := runlog.Track(ctx, e.Recorder, model.RunKindIngest, slug,
		func(ctx context.Context) (*ingest.Result, error) { return e.Ingest.Ingest(ctx, slug) })
	return report(res, run), err
}

// IngestAll crawls every account with at least one active seed.
func (e *appEnv) IngestAll(ctx context.Context) (*batch.Summary, error) {
	s := batch.New(batch.Config{
		Kind:        model.RunKindIngest,
		Pace:        time.Duration(e.cfg.Ingest.PaceMillis) * time.Millisecond,
		Concurrency: e.cfg.Ingest.Concurrency,
	}, e.Recorder)
	return s.RunForAll(ctx, e.Store.ListAccountsWithActiveSeeds,
		func(ctx context.Context, a model.Account) (runlog.Outcome, error) {
			return e.Ingest.IngestAccount(ctx, &a)
		})
}

// FetchNews pulls unattributed news for the configured queries.
func (e *appEnv) FetchNews(ctx context.Context) (*unitReport, error) {
	res, run, err := runlog.Track(ctx, e.Recorder, model.RunKindNews, model.AllAccounts, e.News.FetchNews)
	return report(res, run), err
}

// ClassifyNews attributes pending news documents to accounts.
func (e *appEnv) ClassifyNews(ctx context.Context) (*unitReport, error) {
	res, run, err := runlog.Track(ctx, e.Recorder, model.RunKindClassify, model.AllAccounts,
		func(ctx context.Context) (*classify.Result, error) { return e.Classify.ClassifyPending(ctx) })
	return report(res, run), err
}

// EmbedPending backfills embeddings. batchSize <= 0 uses the configured size.
func (e *appEnv) EmbedPending(ctx context.Context, batchSize int) (*unitReport, error) {
	res, run, err := runlog.Track(ctx, e.Recorder, model.RunKindEmbed, model.AllAccounts,
		func(ctx context.Context) (*embed.Result, error) { return e.Embed.EmbedPending(ctx, batchSize) })
	return report(res, run), err
}

// BriefAccount writes one account's briefing for date.
func (e *appEnv) BriefAccount(ctx context.Context, slug string, date time.Time) (*unitReport, error) {
	res, run, err := runlog.Track(ctx, e.Recorder, model.RunKindBriefing, slug,
		func(ctx context.Context) (*briefing.Result, error) { return e.Briefing.GenerateForSlug(ctx, slug, date) })
	return report(res, run), err
}

// BriefAll writes briefings for every account.
func (e *appEnv) BriefAll(ctx context.Context, date time.Time) (*batch.Summary, error) {
	s := batch.New(batch.Config{
		Kind:        model.RunKindBriefing,
		Pace:        time.Duration(e.cfg.Briefing.PaceMillis) * time.Millisecond,
		Concurrency: e.cfg.Briefing.Concurrency,
	}, e.Recorder)
	return s.RunForAll(ctx, e.Store.ListAccounts,
		func(ctx context.Context, a model.Account) (runlog.Outcome, error) {
			return e.Briefing.Generate(ctx, &a, date)
		})
}

// parseDate accepts YYYY-MM-DD. An empty value means now.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid date %q (want YYYY-MM-DD)", s)
	}
	return d, nil
}
