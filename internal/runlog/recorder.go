// Package runlog records the outcome of every unit-operation invocation as
// an append-only pipeline run row.
package runlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/resilience"
	"github.com/sells-group/account-intel/internal/store"
)

// Outcome is the structured result a unit operation returns.
type Outcome interface {
	Metrics() map[string]int
}

// StatusReporter is implemented by outcomes that can finish in a terminal
// state other than success, such as no_recent_activity.
type StatusReporter interface {
	RunStatus() model.RunStatus
}

// Observer receives every recorded run. monitoring.Metrics implements it.
type Observer interface {
	ObserveRun(run *model.PipelineRun)
}

// processedKey names the metric that fills PipelineRun.Processed.
var processedKey = map[model.RunKind]string{
	model.RunKindIngest:   "created",
	model.RunKindNews:     "created",
	model.RunKindClassify: "classified",
	model.RunKindEmbed:    "embedded",
	model.RunKindBriefing: "documents",
}

// Recorder appends run rows to the store.
type Recorder struct {
	store     store.Store
	observers []Observer
	now       func() time.Time
}

// NewRecorder creates a Recorder. Nil observers are ignored.
func NewRecorder(st store.Store, observers ...Observer) *Recorder {
	r := &Recorder{store: st, now: time.Now}
	for _, o := range observers {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
	return r
}

// Run is one in-flight unit invocation. Finish records it exactly once.
type Run struct {
	rec     *Recorder
	kind    model.RunKind
	slug    string
	started time.Time

	once     sync.Once
	recorded *model.PipelineRun
}

// Start marks a unit invocation as running.
func (r *Recorder) Start(kind model.RunKind, slug string) *Run {
	if slug == "" {
		slug = model.AllAccounts
	}
	zap.L().Debug("runlog: run started", zap.String("kind", string(kind)), zap.String("account", slug))
	return &Run{rec: r, kind: kind, slug: slug, started: r.now()}
}

// Finish moves the run to its terminal state and appends it. Calls after
// the first return the already-recorded row without writing again.
func (run *Run) Finish(ctx context.Context, outcome Outcome, err error) (*model.PipelineRun, error) {
	var appendErr error
	run.once.Do(func() {
		row := run.build(outcome, err)
		// Record even when the unit was canceled.
		appendErr = run.rec.store.AppendRunLog(context.WithoutCancel(ctx), row)
		if appendErr != nil {
			zap.L().Error("runlog: append failed",
				zap.String("kind", string(row.Kind)),
				zap.String("account", row.AccountSlug),
				zap.Error(appendErr),
			)
			appendErr = eris.Wrap(appendErr, "runlog: append")
		}
		for _, o := range run.rec.observers {
			o.ObserveRun(row)
		}
		run.recorded = row
	})
	return run.recorded, appendErr
}

func (run *Run) build(outcome Outcome, err error) *model.PipelineRun {
	now := run.rec.now()
	row := &model.PipelineRun{
		ID:          uuid.NewString(),
		Kind:        run.kind,
		AccountSlug: run.slug,
		Status:      model.RunStatusSuccess,
		DurationMs:  now.Sub(run.started).Milliseconds(),
		CreatedAt:   now.UTC(),
	}
	if outcome != nil {
		row.Counts = outcome.Metrics()
		row.Processed = row.Counts[processedKey[run.kind]]
		if sr, ok := outcome.(StatusReporter); ok && sr.RunStatus().Terminal() {
			row.Status = sr.RunStatus()
		}
	}
	if err != nil {
		row.Status = model.RunStatusError
		row.Error = err.Error()
		row.ErrorType = resilience.ClassifyError(err)
	}
	return row
}

// Track runs fn between Start and Finish.
func Track[T Outcome](ctx context.Context, rec *Recorder, kind model.RunKind, slug string, fn func(context.Context) (T, error)) (T, *model.PipelineRun, error) {
	run := rec.Start(kind, slug)
	out, err := fn(ctx)

	var outcome Outcome
	if any(out) != nil {
		outcome = out
	}
	row, _ := run.Finish(ctx, outcome, err)
	return out, row, err
}
