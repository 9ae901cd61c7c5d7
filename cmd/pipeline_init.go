package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/briefing"
	"github.com/sells-group/account-intel/internal/classify"
	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/crawl"
	"github.com/sells-group/account-intel/internal/embed"
	"github.com/sells-group/account-intel/internal/ingest"
	"github.com/sells-group/account-intel/internal/monitoring"
	"github.com/sells-group/account-intel/internal/resilience"
	"github.com/sells-group/account-intel/internal/runlog"
	"github.com/sells-group/account-intel/internal/store"
	anthropicpkg "github.com/sells-group/account-intel/pkg/anthropic"
	"github.com/sells-group/account-intel/pkg/embeddings"
	"github.com/sells-group/account-intel/pkg/firecrawl"
	"github.com/sells-group/account-intel/pkg/jina"
)

// serviceClients holds the external clients. A client whose key is not
// configured stays nil and the components that need it report
// ErrServiceMisconfigured.
type serviceClients struct {
	Firecrawl  firecrawl.Client
	Jina       jina.Client
	Anthropic  anthropicpkg.Client
	Embeddings embeddings.Client
}

func newServiceClients(c *config.Config) serviceClients {
	var sc serviceClients
	if c.Firecrawl.Key != "" {
		sc.Firecrawl = firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
	}
	if c.Jina.Key != "" {
		sc.Jina = jina.NewClient(c.Jina.Key,
			jina.WithBaseURL(c.Jina.BaseURL),
			jina.WithSearchBaseURL(c.Jina.SearchBaseURL),
		)
	}
	if c.Anthropic.Key != "" {
		sc.Anthropic = anthropicpkg.NewClient(c.Anthropic.Key)
	}
	if c.Embedding.Key != "" {
		sc.Embeddings = embeddings.NewClient(c.Embedding.Key, c.Embedding.Model,
			embeddings.WithBaseURL(c.Embedding.BaseURL),
			embeddings.WithDimensions(c.Embedding.Dimensions),
		)
	}
	return sc
}

// appEnv holds the store, run recorder and unit operations shared by the
// CLI, schedule and serve commands.
type appEnv struct {
	cfg      *config.Config
	Store    store.Store
	Recorder *runlog.Recorder
	Metrics  *monitoring.Metrics
	Breakers *resilience.ServiceBreakers

	Ingest   *ingest.Orchestrator
	News     *ingest.NewsIngestor
	Classify *classify.Classifier
	Embed    *embed.Backfill
	Briefing *briefing.Generator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens the store and wires every
// unit operation. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	return buildEnv(cfg, st, newServiceClients(cfg)), nil
}

func buildEnv(c *config.Config, st store.Store, sc serviceClients) *appEnv {
	metrics := monitoring.NewMetrics(nil)

	breakerCfg := resilience.NewCircuitBreakerConfig("", c.Crawl.BreakerFailureThreshold, c.Crawl.BreakerResetSecs)
	breakerCfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
		zap.L().Warn("circuit state changed",
			zap.String("service", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		metrics.ObserveBreaker(name, from, to)
	}
	breakers := resilience.NewServiceBreakers(breakerCfg)

	// Left as a nil interface when no crawl backend is configured.
	var crawler ingest.Crawler
	svc, err := crawl.New(sc.Firecrawl, sc.Jina, c.Crawl, crawl.WithBreakers(breakers))
	if err != nil {
		zap.L().Debug("no crawl backend configured", zap.Error(err))
	} else {
		crawler = svc
	}

	return &appEnv{
		cfg:      c,
		Store:    st,
		Recorder: runlog.NewRecorder(st, metrics),
		Metrics:  metrics,
		Breakers: breakers,
		Ingest:   ingest.NewOrchestrator(st, crawler),
		News:     ingest.NewNewsIngestor(st, sc.Jina, c.News),
		Classify: classify.New(st, sc.Anthropic, c.Anthropic.HaikuModel, c.Classify),
		Embed:    embed.New(st, sc.Embeddings, c.Embed),
		Briefing: briefing.New(st, sc.Anthropic, c.Anthropic.SonnetModel, c.Briefing),
	}
}
