// Package ingest turns crawled pages and news search results into
// deduplicated documents.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/fingerprint"
	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
)

var (
	// ErrAccountNotFound means no account has the requested slug.
	ErrAccountNotFound = eris.New("ingest: account not found")
	// ErrNoActiveSeeds means the account exists but has nothing to crawl.
	ErrNoActiveSeeds = eris.New("ingest: account has no active seeds")
	// ErrServiceMisconfigured means no crawl or search backend was supplied.
	ErrServiceMisconfigured = eris.New("ingest: crawl service not configured")
)

// Crawler expands a seed URL into pages. An unsuccessful or empty result is
// a normal outcome.
type Crawler interface {
	Crawl(ctx context.Context, url string) (*model.CrawlResult, error)
}

// Result reports one account's ingestion.
type Result struct {
	Seeds       int `json:"seeds"`
	SeedsFailed int `json:"seeds_failed"`
	Pages       int `json:"pages"`
	PagesFailed int `json:"pages_failed"`
	Duplicates  int `json:"duplicates"`
	Created     int `json:"created"`
}

// Metrics flattens the result for run logs and batch summaries.
func (r *Result) Metrics() map[string]int {
	if r == nil {
		return nil
	}
	return map[string]int{
		"seeds":        r.Seeds,
		"seeds_failed": r.SeedsFailed,
		"pages":        r.Pages,
		"pages_failed": r.PagesFailed,
		"duplicates":   r.Duplicates,
		"created":      r.Created,
	}
}

// Orchestrator crawls an account's active seeds one after another and
// stores each page whose fingerprint is new within the account.
type Orchestrator struct {
	store   store.Store
	crawler Crawler
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator. A nil crawler makes every call
// fail with ErrServiceMisconfigured.
func NewOrchestrator(st store.Store, crawler Crawler) *Orchestrator {
	return &Orchestrator{store: st, crawler: crawler, now: time.Now}
}

// Ingest resolves slug and ingests the account.
func (o *Orchestrator) Ingest(ctx context.Context, slug string) (*Result, error) {
	account, err := o.store.GetAccountBySlug(ctx, slug)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: get account %s", slug)
	}
	if account == nil {
		return nil, eris.Wrapf(ErrAccountNotFound, "slug %s", slug)
	}
	return o.IngestAccount(ctx, account)
}

// IngestAccount crawls every active seed of account. Seed and page failures
// are logged and counted; only account-level problems return an error.
func (o *Orchestrator) IngestAccount(ctx context.Context, account *model.Account) (*Result, error) {
	log := zap.L().With(zap.String("account", account.Slug))

	seeds, err := o.store.ListActiveSeeds(ctx, account.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: list seeds for %s", account.Slug)
	}
	if len(seeds) == 0 {
		return nil, eris.Wrapf(ErrNoActiveSeeds, "slug %s", account.Slug)
	}
	if o.crawler == nil {
		return nil, ErrServiceMisconfigured
	}

	res := &Result{}
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "ingest: canceled")
		}
		res.Seeds++

		crawled, err := o.crawler.Crawl(ctx, seed.URL)
		if err != nil {
			res.SeedsFailed++
			log.Warn("ingest: seed crawl failed, skipping",
				zap.String("seed", seed.URL), zap.Error(err))
			continue
		}
		if crawled == nil || !crawled.Success || len(crawled.Pages) == 0 {
			log.Info("ingest: seed returned no pages", zap.String("seed", seed.URL))
			continue
		}

		for _, page := range crawled.Pages {
			o.storePage(ctx, log, account, page, res)
		}
	}

	log.Info("ingest: account complete",
		zap.Int("seeds", res.Seeds),
		zap.Int("seeds_failed", res.SeedsFailed),
		zap.Int("pages", res.Pages),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("created", res.Created),
	)
	return res, nil
}

func (o *Orchestrator) storePage(ctx context.Context, log *zap.Logger, account *model.Account, page model.CrawledPage, res *Result) {
	if strings.TrimSpace(page.Markdown) == "" {
		return
	}
	res.Pages++

	accountID := account.ID
	fp := fingerprint.Compute(page.Markdown)

	existing, err := o.store.FindDocumentByFingerprint(ctx, &accountID, fp)
	if err != nil {
		// The unique index still guards the insert below.
		log.Warn("ingest: fingerprint lookup failed", zap.String("url", page.URL), zap.Error(err))
	}
	if existing != nil {
		res.Duplicates++
		return
	}

	doc := &model.Document{
		ID:          uuid.NewString(),
		AccountID:   &accountID,
		SourceURL:   page.URL,
		SourceKind:  model.SourceWebsite,
		Title:       page.Title,
		RawText:     page.Markdown,
		Fingerprint: fp,
		CrawledAt:   o.now().UTC(),
	}
	inserted, err := o.store.InsertDocument(ctx, doc)
	switch {
	case err != nil:
		res.PagesFailed++
		log.Warn("ingest: insert document failed", zap.String("url", page.URL), zap.Error(err))
	case !inserted:
		res.Duplicates++
	default:
		res.Created++
	}
}
