// Package batch applies a per-account unit operation across a portfolio of
// accounts with pacing and per-account failure isolation.
package batch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/runlog"
)

// ErrEnumerate means the eligible account set could not be listed.
var ErrEnumerate = eris.New("batch: enumerate accounts")

// UnitFunc is the operation applied to one account.
type UnitFunc func(ctx context.Context, account model.Account) (runlog.Outcome, error)

// Enumerator lists the accounts eligible for a run.
type Enumerator func(ctx context.Context) ([]model.Account, error)

// UnitResult is the outcome for one account.
type UnitResult struct {
	Slug       string          `json:"slug"`
	Success    bool            `json:"success"`
	Status     model.RunStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	Metrics    map[string]int  `json:"metrics,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// Summary aggregates one scheduler invocation. Accounts that finished with
// no_recent_activity count as successful and are also tallied in NoActivity.
type Summary struct {
	Kind       model.RunKind `json:"kind"`
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	NoActivity int           `json:"no_activity"`
	Results    []UnitResult  `json:"results"`
}

// Config controls pacing and width.
type Config struct {
	Kind model.RunKind
	// Pace is the minimum delay between starting consecutive accounts.
	Pace time.Duration
	// Concurrency is the number of accounts in flight. 1 is strictly
	// sequential.
	Concurrency int
}

// Scheduler runs a unit operation for each account.
type Scheduler struct {
	cfg      Config
	recorder *runlog.Recorder
	limiter  *rate.Limiter
}

// New creates a Scheduler. A nil recorder skips run logging.
func New(cfg Config, recorder *runlog.Recorder) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	limit := rate.Inf
	if cfg.Pace > 0 {
		limit = rate.Every(cfg.Pace)
	}
	return &Scheduler{
		cfg:      cfg,
		recorder: recorder,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// RunForAll enumerates the eligible accounts and runs unit for each. It
// fails only when enumeration fails or ctx is canceled.
func (s *Scheduler) RunForAll(ctx context.Context, enumerate Enumerator, unit UnitFunc) (*Summary, error) {
	accounts, err := enumerate(ctx)
	if err != nil {
		return nil, eris.Wrapf(ErrEnumerate, "%s: %v", s.cfg.Kind, err)
	}
	return s.Run(ctx, accounts, unit)
}

// Run applies unit to each account. Per-account failures are captured in
// the summary; the returned error is non-nil only when ctx ends early, in
// which case the summary covers the accounts that ran.
func (s *Scheduler) Run(ctx context.Context, accounts []model.Account, unit UnitFunc) (*Summary, error) {
	log := zap.L().With(zap.String("kind", string(s.cfg.Kind)))
	log.Info("batch: starting",
		zap.Int("accounts", len(accounts)),
		zap.Int("concurrency", s.cfg.Concurrency),
		zap.Duration("pace", s.cfg.Pace),
	)

	results := make([]*UnitResult, len(accounts))
	var runErr error

	if s.cfg.Concurrency == 1 {
		for i := range accounts {
			if err := s.limiter.Wait(ctx); err != nil {
				runErr = err
				break
			}
			results[i] = s.runUnit(ctx, accounts[i], unit)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Concurrency)
		for i := range accounts {
			if err := s.limiter.Wait(gctx); err != nil {
				runErr = err
				break
			}
			g.Go(func() error {
				results[i] = s.runUnit(gctx, accounts[i], unit)
				return nil
			})
		}
		_ = g.Wait()
	}

	sum := &Summary{Kind: s.cfg.Kind}
	for _, r := range results {
		if r == nil {
			continue
		}
		sum.add(*r)
	}

	log.Info("batch: complete",
		zap.Int("total", sum.Total),
		zap.Int("successful", sum.Successful),
		zap.Int("failed", sum.Failed),
		zap.Int("no_activity", sum.NoActivity),
	)
	if runErr != nil {
		return sum, eris.Wrap(runErr, "batch: interrupted")
	}
	return sum, nil
}

func (s *Summary) add(r UnitResult) {
	s.Total++
	s.Results = append(s.Results, r)
	if !r.Success {
		s.Failed++
		return
	}
	s.Successful++
	if r.Status == model.RunStatusNoRecentActivity {
		s.NoActivity++
	}
}

// runUnit invokes unit for one account, turning errors and panics into a
// failed UnitResult.
func (s *Scheduler) runUnit(ctx context.Context, account model.Account, unit UnitFunc) *UnitResult {
	var run *runlog.Run
	if s.recorder != nil {
		run = s.recorder.Start(s.cfg.Kind, account.Slug)
	}
	start := time.Now()

	outcome, err := safeCall(ctx, account, unit)

	res := &UnitResult{
		Slug:       account.Slug,
		Success:    err == nil,
		Status:     model.RunStatusSuccess,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if outcome != nil {
		res.Metrics = outcome.Metrics()
		if sr, ok := outcome.(runlog.StatusReporter); ok && sr.RunStatus().Terminal() {
			res.Status = sr.RunStatus()
		}
	}
	if err != nil {
		res.Status = model.RunStatusError
		res.Error = err.Error()
		zap.L().Warn("batch: account failed",
			zap.String("kind", string(s.cfg.Kind)),
			zap.String("account", account.Slug),
			zap.Error(err),
		)
	}

	if run != nil {
		_, _ = run.Finish(ctx, outcome, err)
	}
	return res
}

func safeCall(ctx context.Context, account model.Account, unit UnitFunc) (out runlog.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = eris.Errorf("batch: panic in %s: %v", account.Slug, p)
		}
	}()
	return unit(ctx, account)
}
