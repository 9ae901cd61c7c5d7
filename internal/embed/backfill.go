// Package embed backfills vector embeddings for stored documents.
package embed

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
	"github.com/sells-group/account-intel/pkg/embeddings"
)

const defaultBatchSize = 64

// ErrServiceMisconfigured means no embedding client was supplied.
var ErrServiceMisconfigured = eris.New("embed: embedding service not configured")

// Result reports one backfill pass. Attempted counts every document sent
// to the embedding service; Embedded counts rows actually stored.
type Result struct {
	Backlog   int `json:"backlog"`
	Attempted int `json:"attempted"`
	Embedded  int `json:"embedded"`
	Failed    int `json:"failed"`
	Batches   int `json:"batches"`
}

// Metrics flattens the result for run logs.
func (r *Result) Metrics() map[string]int {
	if r == nil {
		return nil
	}
	return map[string]int{
		"backlog":   r.Backlog,
		"attempted": r.Attempted,
		"embedded":  r.Embedded,
		"failed":    r.Failed,
		"batches":   r.Batches,
	}
}

// Backfill drains the set of documents without an embedding, newest first,
// one batch per embedding call.
type Backfill struct {
	store    store.Store
	embedder embeddings.Client
	cfg      config.EmbedConfig
	now      func() time.Time
}

// New creates a Backfill.
func New(st store.Store, embedder embeddings.Client, cfg config.EmbedConfig) *Backfill {
	return &Backfill{store: st, embedder: embedder, cfg: cfg, now: time.Now}
}

// EmbedPending embeds pending documents in batches of batchSize until the
// backlog is empty, embed.max_batches is reached, or the service fails.
// A document whose storage fails is not re-sent within the same pass.
func (b *Backfill) EmbedPending(ctx context.Context, batchSize int) (*Result, error) {
	if b.embedder == nil {
		return nil, ErrServiceMisconfigured
	}
	if batchSize <= 0 {
		batchSize = b.cfg.BatchSize
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	res := &Result{}
	skip := make(map[string]bool)

	var batch []model.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := b.store.CountDocumentsMissingEmbedding(gctx)
		if err != nil {
			return eris.Wrap(err, "embed: count backlog")
		}
		res.Backlog = n
		return nil
	})
	g.Go(func() error {
		docs, err := b.store.ListDocumentsMissingEmbedding(gctx, batchSize)
		if err != nil {
			return eris.Wrap(err, "embed: list pending")
		}
		batch = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for len(batch) > 0 {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "embed: canceled")
		}
		res.Batches++

		if ok := b.embedBatch(ctx, batch, res, skip); !ok {
			break
		}
		if b.cfg.MaxBatches > 0 && res.Batches >= b.cfg.MaxBatches {
			break
		}

		next, err := b.nextBatch(ctx, batchSize, skip)
		if err != nil {
			return res, err
		}
		batch = next
	}

	zap.L().Info("embed: backfill complete",
		zap.Int("backlog", res.Backlog),
		zap.Int("batches", res.Batches),
		zap.Int("attempted", res.Attempted),
		zap.Int("embedded", res.Embedded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// nextBatch lists enough pending documents to fill a batch after dropping
// the ones already attempted in this pass.
func (b *Backfill) nextBatch(ctx context.Context, batchSize int, skip map[string]bool) ([]model.Document, error) {
	docs, err := b.store.ListDocumentsMissingEmbedding(ctx, batchSize+len(skip))
	if err != nil {
		return nil, eris.Wrap(err, "embed: list pending")
	}
	out := make([]model.Document, 0, batchSize)
	for _, d := range docs {
		if skip[d.ID] {
			continue
		}
		out = append(out, d)
		if len(out) == batchSize {
			break
		}
	}
	return out, nil
}

// embedBatch sends one batch and stores the vectors by position. It returns
// false when the service itself failed and the pass should stop.
func (b *Backfill) embedBatch(ctx context.Context, batch []model.Document, res *Result, skip map[string]bool) bool {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].EmbeddingText(b.cfg.MaxTextChars)
	}
	res.Attempted += len(batch)

	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		res.Failed += len(batch)
		zap.L().Warn("embed: embedding call failed", zap.Int("batch", len(batch)), zap.Error(err))
		return false
	}
	if len(vectors) != len(batch) {
		res.Failed += len(batch)
		zap.L().Error("embed: vector count mismatch, batch rejected",
			zap.Int("requested", len(batch)),
			zap.Int("returned", len(vectors)),
		)
		return false
	}

	created := b.now().UTC()
	for i := range batch {
		err := b.store.InsertEmbedding(ctx, model.DocumentEmbedding{
			DocumentID: batch[i].ID,
			Vector:     vectors[i],
			Model:      b.embedder.Model(),
			CreatedAt:  created,
		})
		if err != nil {
			res.Failed++
			skip[batch[i].ID] = true
			zap.L().Warn("embed: store embedding failed",
				zap.String("document_id", batch[i].ID), zap.Error(err))
			continue
		}
		res.Embedded++
	}
	return true
}
