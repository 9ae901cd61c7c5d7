package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/resilience"
	"github.com/sells-group/account-intel/internal/store"
)

// KindStats counts runs of one kind inside the lookback window.
type KindStats struct {
	Total      int `json:"total"`
	Success    int `json:"success"`
	Error      int `json:"error"`
	NoActivity int `json:"no_activity"`
	Processed  int `json:"processed"`
}

// Snapshot is a point-in-time view of pipeline health.
type Snapshot struct {
	RunsTotal      int     `json:"runs_total"`
	RunsSuccess    int     `json:"runs_success"`
	RunsError      int     `json:"runs_error"`
	RunsNoActivity int     `json:"runs_no_activity"`
	FailureRate    float64 `json:"failure_rate"`

	ByKind      map[model.RunKind]*KindStats `json:"by_kind"`
	ErrorTypes  map[string]int               `json:"error_types"`
	FailedSlugs []string                     `json:"failed_slugs,omitempty"`

	EmbeddingBacklog int `json:"embedding_backlog"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector builds snapshots from the run log and the document store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect summarizes runs created within the last lookbackHours.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	now := c.now().UTC()
	snap := &Snapshot{
		ByKind:        make(map[model.RunKind]*KindStats),
		ErrorTypes:    make(map[string]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.store.ListRunLogs(ctx, model.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	seenFailed := make(map[string]bool)
	for _, r := range runs {
		ks, ok := snap.ByKind[r.Kind]
		if !ok {
			ks = &KindStats{}
			snap.ByKind[r.Kind] = ks
		}
		snap.RunsTotal++
		ks.Total++
		ks.Processed += r.Processed

		switch r.Status {
		case model.RunStatusSuccess:
			snap.RunsSuccess++
			ks.Success++
		case model.RunStatusNoRecentActivity:
			snap.RunsNoActivity++
			ks.NoActivity++
		case model.RunStatusError:
			snap.RunsError++
			ks.Error++
			errType := r.ErrorType
			if errType == "" {
				errType = resilience.ClassPermanent
			}
			snap.ErrorTypes[errType]++
			if r.AccountSlug != model.AllAccounts && !seenFailed[r.AccountSlug] {
				seenFailed[r.AccountSlug] = true
				snap.FailedSlugs = append(snap.FailedSlugs, r.AccountSlug)
			}
		}
	}
	if snap.RunsTotal > 0 {
		snap.FailureRate = float64(snap.RunsError) / float64(snap.RunsTotal)
	}

	backlog, err := c.store.CountDocumentsMissingEmbedding(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count embedding backlog")
	}
	snap.EmbeddingBacklog = backlog

	return snap, nil
}
