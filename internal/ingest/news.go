package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/fingerprint"
	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
	"github.com/sells-group/account-intel/pkg/jina"
)

// NewsResult reports one news fetch pass.
type NewsResult struct {
	Queries       int `json:"queries"`
	QueriesFailed int `json:"queries_failed"`
	Results       int `json:"results"`
	Created       int `json:"created"`
	Duplicates    int `json:"duplicates"`
	Failed        int `json:"failed"`
}

// Metrics flattens the result for run logs.
func (r *NewsResult) Metrics() map[string]int {
	if r == nil {
		return nil
	}
	return map[string]int{
		"queries":        r.Queries,
		"queries_failed": r.QueriesFailed,
		"results":        r.Results,
		"created":        r.Created,
		"duplicates":     r.Duplicates,
		"failed":         r.Failed,
	}
}

// NewsIngestor stores news search results as unattributed documents for
// the classifier. Results whose full text was read are marked processed;
// snippet-only results are stored unprocessed and never classified.
type NewsIngestor struct {
	store store.Store
	jina  jina.Client
	cfg   config.NewsConfig
	now   func() time.Time
}

// NewNewsIngestor creates a NewsIngestor.
func NewNewsIngestor(st store.Store, jc jina.Client, cfg config.NewsConfig) *NewsIngestor {
	return &NewsIngestor{store: st, jina: jc, cfg: cfg, now: time.Now}
}

// FetchNews runs every configured query once.
func (n *NewsIngestor) FetchNews(ctx context.Context) (*NewsResult, error) {
	if n.jina == nil {
		return nil, ErrServiceMisconfigured
	}

	res := &NewsResult{}
	for _, q := range n.cfg.Queries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Queries++

		var opts []jina.SearchOption
		if n.cfg.MaxResults > 0 {
			opts = append(opts, jina.WithCount(n.cfg.MaxResults))
		}
		resp, err := n.jina.Search(ctx, q, opts...)
		if err != nil {
			res.QueriesFailed++
			zap.L().Warn("news: search failed", zap.String("query", q), zap.Error(err))
			continue
		}

		for _, r := range resp.Data {
			res.Results++
			n.storeResult(ctx, r, res)
		}
	}

	zap.L().Info("news: fetch complete",
		zap.Int("queries", res.Queries),
		zap.Int("results", res.Results),
		zap.Int("created", res.Created),
		zap.Int("duplicates", res.Duplicates),
	)
	return res, nil
}

func (n *NewsIngestor) storeResult(ctx context.Context, r jina.SearchResult, res *NewsResult) {
	title := r.Title
	text := r.Snippet()
	processed := false

	if n.cfg.ReadFull && r.URL != "" {
		read, err := n.jina.Read(ctx, r.URL)
		if err != nil {
			zap.L().Debug("news: full read failed, keeping snippet", zap.String("url", r.URL), zap.Error(err))
		} else if strings.TrimSpace(read.Data.Content) != "" {
			text = read.Data.Content
			processed = true
			if title == "" {
				title = read.Data.Title
			}
		}
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	fp := fingerprint.Compute(text)
	existing, err := n.store.FindDocumentByFingerprint(ctx, nil, fp)
	if err != nil {
		zap.L().Warn("news: fingerprint lookup failed", zap.String("url", r.URL), zap.Error(err))
	}
	if existing != nil {
		res.Duplicates++
		return
	}

	inserted, err := n.store.InsertDocument(ctx, &model.Document{
		ID:          uuid.NewString(),
		SourceURL:   r.URL,
		SourceKind:  model.SourceNews,
		Title:       title,
		RawText:     text,
		Fingerprint: fp,
		CrawledAt:   n.now().UTC(),
		Processed:   processed,
	})
	switch {
	case err != nil:
		res.Failed++
		zap.L().Warn("news: insert document failed", zap.String("url", r.URL), zap.Error(err))
	case !inserted:
		res.Duplicates++
	default:
		res.Created++
	}
}
