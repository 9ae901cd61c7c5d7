// Package briefing writes a short narrative of an account's recent
// documents. It is the second workload driven by the batch scheduler.
package briefing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
	"github.com/sells-group/account-intel/pkg/anthropic"
)

var (
	// ErrAccountNotFound means no account has the requested slug.
	ErrAccountNotFound = eris.New("briefing: account not found")
	// ErrServiceMisconfigured means no completion client was supplied.
	ErrServiceMisconfigured = eris.New("briefing: completion service not configured")
)

const (
	defaultLookback     = 7 * 24 * time.Hour
	defaultMaxDocuments = 40
	perDocumentChars    = 1500
)

const systemPrompt = `You write account briefings for a sales team that follows health systems.
Summarize only what the provided documents say. Do not speculate.
Respond with only a JSON object:
{"headline": "<one line>", "summary": "<2-4 sentences>", "signals": ["<short buying signal>", ...]}`

// Result reports one account's briefing run.
type Result struct {
	Status    model.RunStatus  `json:"status"`
	Documents int              `json:"documents"`
	Briefing  *model.Briefing  `json:"briefing,omitempty"`
	Usage     model.TokenUsage `json:"usage"`
}

// Metrics flattens the result for run logs.
func (r *Result) Metrics() map[string]int {
	if r == nil {
		return nil
	}
	return map[string]int{"documents": r.Documents}
}

// RunStatus reports success or no_recent_activity.
func (r *Result) RunStatus() model.RunStatus {
	if r == nil {
		return ""
	}
	return r.Status
}

// Generator creates briefings.
type Generator struct {
	store store.Store
	llm   anthropic.Client
	model string
	cfg   config.BriefingConfig
	now   func() time.Time
}

// New creates a Generator using the given completion model.
func New(st store.Store, llm anthropic.Client, model string, cfg config.BriefingConfig) *Generator {
	return &Generator{store: st, llm: llm, model: model, cfg: cfg, now: time.Now}
}

// GenerateForSlug resolves slug and generates its briefing for date.
func (g *Generator) GenerateForSlug(ctx context.Context, slug string, date time.Time) (*Result, error) {
	account, err := g.store.GetAccountBySlug(ctx, slug)
	if err != nil {
		return nil, eris.Wrapf(err, "briefing: get account %s", slug)
	}
	if account == nil {
		return nil, eris.Wrapf(ErrAccountNotFound, "slug %s", slug)
	}
	return g.Generate(ctx, account, date)
}

// Generate writes a briefing covering documents crawled since the latest
// briefing, bounded by the lookback window and the end of date's UTC day.
// With nothing new it finishes with no_recent_activity and writes nothing.
func (g *Generator) Generate(ctx context.Context, account *model.Account, date time.Time) (*Result, error) {
	if g.llm == nil {
		return nil, ErrServiceMisconfigured
	}
	if date.IsZero() {
		date = g.now()
	}
	date = date.UTC()
	windowStart := date.Add(-g.lookback())
	windowEnd := date.Truncate(24 * time.Hour).Add(24 * time.Hour)

	var (
		latest *model.Briefing
		docs   []model.Document
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		b, err := g.store.LatestBriefing(egctx, account.ID)
		if err != nil {
			return eris.Wrapf(err, "briefing: latest for %s", account.Slug)
		}
		latest = b
		return nil
	})
	eg.Go(func() error {
		d, err := g.store.ListAccountDocumentsBetween(egctx, account.ID, windowStart, windowEnd, g.maxDocuments())
		if err != nil {
			return eris.Wrapf(err, "briefing: documents for %s", account.Slug)
		}
		docs = d
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if latest != nil {
		docs = newerThan(docs, latest.CreatedAt)
	}
	res := &Result{Status: model.RunStatusNoRecentActivity, Documents: len(docs)}
	if len(docs) == 0 {
		zap.L().Info("briefing: no recent activity", zap.String("account", account.Slug))
		return res, nil
	}

	temp := 0.2
	resp, err := g.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   1024,
		System:      anthropic.CachedSystem(systemPrompt),
		Temperature: &temp,
		Messages:    []anthropic.Message{{Role: "user", Content: buildPrompt(account, date, docs)}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "briefing: completion for %s", account.Slug)
	}
	resp.Usage.LogCost(g.model, "briefing")
	res.Usage = model.TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		Cost:         resp.Usage.EstimateCost(g.model),
	}

	var out struct {
		Headline string   `json:"headline"`
		Summary  string   `json:"summary"`
		Signals  []string `json:"signals"`
	}
	if err := anthropic.DecodeJSON(resp.Text(), &out); err != nil {
		return nil, eris.Wrapf(err, "briefing: decode reply for %s", account.Slug)
	}
	if strings.TrimSpace(out.Headline) == "" && strings.TrimSpace(out.Summary) == "" {
		return nil, eris.Errorf("briefing: empty narrative for %s", account.Slug)
	}

	b := &model.Briefing{
		ID:            uuid.NewString(),
		AccountID:     account.ID,
		Date:          date.Truncate(24 * time.Hour),
		Headline:      out.Headline,
		Summary:       out.Summary,
		Signals:       out.Signals,
		DocumentCount: len(docs),
		Model:         g.model,
		CreatedAt:     g.now().UTC(),
	}
	if err := g.store.InsertBriefing(ctx, b); err != nil {
		return nil, eris.Wrapf(err, "briefing: store for %s", account.Slug)
	}

	res.Status = model.RunStatusSuccess
	res.Briefing = b
	zap.L().Info("briefing: generated",
		zap.String("account", account.Slug),
		zap.Int("documents", len(docs)),
		zap.Int("signals", len(b.Signals)),
	)
	return res, nil
}

func (g *Generator) lookback() time.Duration {
	if g.cfg.LookbackHours > 0 {
		return time.Duration(g.cfg.LookbackHours) * time.Hour
	}
	return defaultLookback
}

func (g *Generator) maxDocuments() int {
	if g.cfg.MaxDocuments > 0 {
		return g.cfg.MaxDocuments
	}
	return defaultMaxDocuments
}

func newerThan(docs []model.Document, t time.Time) []model.Document {
	out := docs[:0]
	for _, d := range docs {
		if d.CrawledAt.After(t) {
			out = append(out, d)
		}
	}
	return out
}

func buildPrompt(account *model.Account, date time.Time, docs []model.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Account: %s (%s)\n", account.Name, account.Slug)
	if account.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", account.Location)
	}
	fmt.Fprintf(&b, "Briefing date: %s\n\n", date.Format("2006-01-02"))
	for i, d := range docs {
		fmt.Fprintf(&b, "--- Document %d (%s, %s) ---\n", i+1, d.SourceKind, d.CrawledAt.Format("2006-01-02"))
		fmt.Fprintf(&b, "URL: %s\n%s\n\n", d.SourceURL, d.EmbeddingText(perDocumentChars))
	}
	return b.String()
}
