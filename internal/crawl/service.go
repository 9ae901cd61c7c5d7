// Package crawl expands a seed URL into pages using Firecrawl, falling back
// to a single-page Jina read when Firecrawl is unavailable or comes back
// empty.
package crawl

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/resilience"
	"github.com/sells-group/account-intel/pkg/firecrawl"
	"github.com/sells-group/account-intel/pkg/jina"
)

const (
	SourceFirecrawl = "firecrawl"
	SourceJina      = "jina"
)

// ErrNoBackend is returned by New when neither crawl backend is configured.
var ErrNoBackend = eris.New("crawl: no crawl backend configured")

// Service crawls one seed at a time. It never retries; a failed backend is
// recorded against its circuit breaker and the next backend is tried once.
type Service struct {
	fc       firecrawl.Client
	jina     jina.Client
	cfg      config.CrawlConfig
	filter   *PageFilter
	breakers *resilience.ServiceBreakers
	pollOpts []firecrawl.PollOption
}

// Option configures a Service.
type Option func(*Service)

// WithPollOptions overrides how Firecrawl crawl jobs are polled.
func WithPollOptions(opts ...firecrawl.PollOption) Option {
	return func(s *Service) { s.pollOpts = append(s.pollOpts, opts...) }
}

// WithBreakers shares a breaker registry with other components.
func WithBreakers(sb *resilience.ServiceBreakers) Option {
	return func(s *Service) {
		if sb != nil {
			s.breakers = sb
		}
	}
}

// New creates a crawl Service. Either client may be nil, but not both.
func New(fc firecrawl.Client, jc jina.Client, cfg config.CrawlConfig, opts ...Option) (*Service, error) {
	if fc == nil && jc == nil {
		return nil, ErrNoBackend
	}
	s := &Service{
		fc:       fc,
		jina:     jc,
		cfg:      cfg,
		filter:   NewPageFilter(cfg.ExcludePaths),
		breakers: resilience.NewServiceBreakers(resilience.NewCircuitBreakerConfig(
			"", cfg.BreakerFailureThreshold, cfg.BreakerResetSecs,
		)),
	}
	if cfg.PollTimeoutSecs > 0 {
		s.pollOpts = append(s.pollOpts, firecrawl.WithPollTimeout(time.Duration(cfg.PollTimeoutSecs)*time.Second))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Breakers exposes the breaker registry for health reporting.
func (s *Service) Breakers() *resilience.ServiceBreakers { return s.breakers }

// Ready reports an error when every configured backend has an open circuit.
func (s *Service) Ready() error {
	var last error
	if s.fc != nil {
		if last = s.breakers.Get(SourceFirecrawl).Ready(); last == nil {
			return nil
		}
	}
	if s.jina != nil {
		if last = s.breakers.Get(SourceJina).Ready(); last == nil {
			return nil
		}
	}
	return last
}

// Crawl fetches the pages reachable from seedURL. An empty or unsuccessful
// result is returned without error; an error means every backend failed.
func (s *Service) Crawl(ctx context.Context, seedURL string) (*model.CrawlResult, error) {
	log := zap.L().With(zap.String("seed", seedURL))

	var errs []error
	if s.fc != nil {
		pages, err := resilience.ExecuteVal(ctx, s.breakers.Get(SourceFirecrawl), func(ctx context.Context) ([]model.CrawledPage, error) {
			return s.crawlFirecrawl(ctx, seedURL)
		})
		switch {
		case err != nil:
			log.Warn("crawl: firecrawl failed", zap.Error(err))
			errs = append(errs, err)
		case len(pages) > 0:
			return &model.CrawlResult{Success: true, Pages: pages, Source: SourceFirecrawl}, nil
		default:
			log.Debug("crawl: firecrawl returned no pages")
		}
	}

	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "crawl: canceled")
	}

	if s.jina != nil {
		page, err := resilience.ExecuteVal(ctx, s.breakers.Get(SourceJina), func(ctx context.Context) (*model.CrawledPage, error) {
			return s.readJina(ctx, seedURL)
		})
		switch {
		case err != nil:
			log.Warn("crawl: jina read failed", zap.Error(err))
			errs = append(errs, err)
		case page != nil:
			return &model.CrawlResult{Success: true, Pages: []model.CrawledPage{*page}, Source: SourceJina}, nil
		}
	}

	if len(errs) > 0 {
		return nil, eris.Wrapf(errs[len(errs)-1], "crawl: all backends failed for %s", seedURL)
	}
	return &model.CrawlResult{Success: false}, nil
}

func (s *Service) crawlFirecrawl(ctx context.Context, seedURL string) ([]model.CrawledPage, error) {
	opts := &firecrawl.ScrapeOptions{Formats: []string{"markdown"}, OnlyMainContent: true}

	if s.cfg.MaxDepth <= 0 {
		resp, err := s.fc.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:             seedURL,
			Formats:         opts.Formats,
			OnlyMainContent: opts.OnlyMainContent,
		})
		if err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, nil
		}
		return s.convertPages([]firecrawl.PageData{resp.Data}, seedURL), nil
	}

	job, err := s.fc.Crawl(ctx, firecrawl.CrawlRequest{
		URL:           seedURL,
		MaxDepth:      s.cfg.MaxDepth,
		Limit:         s.cfg.MaxPages,
		ScrapeOptions: opts,
	})
	if err != nil {
		return nil, err
	}

	status, err := firecrawl.PollCrawl(ctx, s.fc, job.ID, s.pollOpts...)
	if err != nil {
		return nil, err
	}
	return s.convertPages(status.Data, seedURL), nil
}

func (s *Service) readJina(ctx context.Context, seedURL string) (*model.CrawledPage, error) {
	resp, err := s.jina.Read(ctx, seedURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Data.Content) == "" {
		return nil, nil
	}
	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = seedURL
	}
	page := model.CrawledPage{
		URL:        pageURL,
		Title:      resp.Data.Title,
		Markdown:   resp.Data.Content,
		StatusCode: resp.Code,
	}
	if kind := DetectBlock(page.Markdown); kind != BlockNone {
		zap.L().Debug("crawl: jina page blocked", zap.String("seed", seedURL), zap.String("block", string(kind)))
		return nil, nil
	}
	return &page, nil
}

// convertPages drops error pages, empty pages and pages the filter rejects.
func (s *Service) convertPages(data []firecrawl.PageData, seedURL string) []model.CrawledPage {
	pages := make([]model.CrawledPage, 0, len(data))
	for _, d := range data {
		if d.PageStatus() >= 400 || strings.TrimSpace(d.Markdown) == "" {
			continue
		}
		u := d.PageURL()
		if u == "" {
			u = seedURL
		}
		page := model.CrawledPage{
			URL:        u,
			Title:      d.PageTitle(),
			Markdown:   d.Markdown,
			StatusCode: d.PageStatus(),
		}
		if ok, reason := s.filter.Keep(page, seedURL); !ok {
			zap.L().Debug("crawl: page skipped", zap.String("url", u), zap.String("reason", reason))
			continue
		}
		pages = append(pages, page)
	}
	return pages
}
