package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/resilience"
	"github.com/sells-group/account-intel/pkg/firecrawl"
	"github.com/sells-group/account-intel/pkg/jina"
)

var testCfg = config.CrawlConfig{MaxPages: 10, MaxDepth: 2, BreakerFailureThreshold: 2, BreakerResetSecs: 60}

func newTestService(t *testing.T, fc firecrawl.Client, jc jina.Client, cfg config.CrawlConfig) *Service {
	t.Helper()
	s, err := New(fc, jc, cfg, WithPollOptions(firecrawl.WithPollInterval(time.Millisecond)))
	require.NoError(t, err)
	return s
}

func TestNew_NoBackend(t *testing.T) {
	_, err := New(nil, nil, testCfg)
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestCrawl_FirecrawlPages(t *testing.T) {
	ctx := context.Background()
	fc := &mockFirecrawl{}
	fc.On("Crawl", mock.Anything, mock.MatchedBy(func(r firecrawl.CrawlRequest) bool {
		return r.URL == "https://acme.org" && r.MaxDepth == 2 && r.Limit == 10
	})).Return(&firecrawl.CrawlResponse{Success: true, ID: "job-1"}, nil)
	fc.On("GetCrawlStatus", mock.Anything, "job-1").Return(&firecrawl.CrawlStatusResponse{
		Status: "completed",
		Data: []firecrawl.PageData{
			{Markdown: "# Home", Metadata: firecrawl.PageMetadata{SourceURL: "https://acme.org", Title: "Home", StatusCode: 200}},
			{Markdown: "not found", Metadata: firecrawl.PageMetadata{SourceURL: "https://acme.org/x", StatusCode: 404}},
			{Markdown: "   ", Metadata: firecrawl.PageMetadata{SourceURL: "https://acme.org/blank", StatusCode: 200}},
		},
	}, nil)

	s := newTestService(t, fc, nil, testCfg)
	res, err := s.Crawl(ctx, "https://acme.org")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, SourceFirecrawl, res.Source)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "Home", res.Pages[0].Title)
	fc.AssertExpectations(t)
}

func TestCrawl_DepthZeroScrapes(t *testing.T) {
	fc := &mockFirecrawl{}
	fc.On("Scrape", mock.Anything, mock.Anything).Return(&firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.PageData{Markdown: "# Only page", URL: "https://acme.org"},
	}, nil)

	cfg := testCfg
	cfg.MaxDepth = 0
	s := newTestService(t, fc, nil, cfg)
	res, err := s.Crawl(context.Background(), "https://acme.org")
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	fc.AssertNotCalled(t, "Crawl", mock.Anything, mock.Anything)
}

func TestCrawl_FallsBackToJina(t *testing.T) {
	fc := &mockFirecrawl{}
	fc.On("Crawl", mock.Anything, mock.Anything).Return(nil, &firecrawl.APIError{StatusCode: 503, Body: "down"})

	jc := &mockJina{}
	jc.On("Read", mock.Anything, "https://acme.org").Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Title: "Acme", Content: "Acme Health is a health system."},
	}, nil)

	s := newTestService(t, fc, jc, testCfg)
	res, err := s.Crawl(context.Background(), "https://acme.org")
	require.NoError(t, err)
	assert.Equal(t, SourceJina, res.Source)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "https://acme.org", res.Pages[0].URL)
}

func TestCrawl_EmptyIsNotAnError(t *testing.T) {
	fc := &mockFirecrawl{}
	fc.On("Crawl", mock.Anything, mock.Anything).Return(&firecrawl.CrawlResponse{Success: true, ID: "job-2"}, nil)
	fc.On("GetCrawlStatus", mock.Anything, "job-2").Return(&firecrawl.CrawlStatusResponse{Status: "completed"}, nil)

	jc := &mockJina{}
	jc.On("Read", mock.Anything, mock.Anything).Return(&jina.ReadResponse{Code: 200}, nil)

	s := newTestService(t, fc, jc, testCfg)
	res, err := s.Crawl(context.Background(), "https://acme.org")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.Pages)
}

func TestCrawl_AllBackendsFail(t *testing.T) {
	fc := &mockFirecrawl{}
	fc.On("Crawl", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	jc := &mockJina{}
	jc.On("Read", mock.Anything, mock.Anything).Return(nil, &jina.APIError{StatusCode: 500})

	s := newTestService(t, fc, jc, testCfg)
	_, err := s.Crawl(context.Background(), "https://acme.org")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all backends failed")
}

func TestCrawl_BreakerOpensWithoutRetrying(t *testing.T) {
	fc := &mockFirecrawl{}
	fc.On("Crawl", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	s := newTestService(t, fc, nil, testCfg)
	for i := 0; i < 2; i++ {
		_, err := s.Crawl(context.Background(), "https://acme.org")
		require.Error(t, err)
	}
	fc.AssertNumberOfCalls(t, "Crawl", 2)

	_, err := s.Crawl(context.Background(), "https://acme.org")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	fc.AssertNumberOfCalls(t, "Crawl", 2)
	assert.ErrorIs(t, s.Ready(), resilience.ErrCircuitOpen)
}

func TestCrawl_FiltersExcludedAndBlockedPages(t *testing.T) {
	fc := &mockFirecrawl{}
	fc.On("Crawl", mock.Anything, mock.Anything).Return(&firecrawl.CrawlResponse{Success: true, ID: "job-2"}, nil)
	fc.On("GetCrawlStatus", mock.Anything, "job-2").Return(&firecrawl.CrawlStatusResponse{
		Status: "completed",
		Data: []firecrawl.PageData{
			{Markdown: "# Home", Metadata: firecrawl.PageMetadata{SourceURL: "https://acme.org", StatusCode: 200}},
			{Markdown: "# RN opening", Metadata: firecrawl.PageMetadata{SourceURL: "https://acme.org/careers/rn", StatusCode: 200}},
			{Markdown: "Please complete the captcha", Metadata: firecrawl.PageMetadata{SourceURL: "https://acme.org/about", StatusCode: 200}},
		},
	}, nil)

	cfg := testCfg
	cfg.ExcludePaths = []string{"/careers/*"}
	s := newTestService(t, fc, nil, cfg)

	res, err := s.Crawl(context.Background(), "https://acme.org")
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "https://acme.org", res.Pages[0].URL)
}
