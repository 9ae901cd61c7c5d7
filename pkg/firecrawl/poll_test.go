package firecrawl

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements Client for testing poll functions.
type mockClient struct {
	crawlStatusFunc func(ctx context.Context, id string) (*CrawlStatusResponse, error)
}

func (m *mockClient) Crawl(context.Context, CrawlRequest) (*CrawlResponse, error) {
	return nil, nil
}

func (m *mockClient) GetCrawlStatus(ctx context.Context, id string) (*CrawlStatusResponse, error) {
	return m.crawlStatusFunc(ctx, id)
}

func (m *mockClient) Scrape(context.Context, ScrapeRequest) (*ScrapeResponse, error) {
	return nil, nil
}

func TestPollCrawl_CompletesImmediately(t *testing.T) {
	mock := &mockClient{
		crawlStatusFunc: func(ctx context.Context, id string) (*CrawlStatusResponse, error) {
			return &CrawlStatusResponse{
				Status: "completed",
				Data:   []PageData{{URL: "https://example.com", Markdown: "# Home"}},
			}, nil
		},
	}

	resp, err := PollCrawl(context.Background(), mock, "crawl-123", WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)
}

func TestPollCrawl_CompletesAfterPolling(t *testing.T) {
	var calls atomic.Int32
	mock := &mockClient{
		crawlStatusFunc: func(ctx context.Context, id string) (*CrawlStatusResponse, error) {
			if calls.Add(1) < 3 {
				return &CrawlStatusResponse{Status: "scraping"}, nil
			}
			return &CrawlStatusResponse{
				Status: "completed",
				Data: []PageData{
					{URL: "https://example.com", Markdown: "# Home"},
					{URL: "https://example.com/about", Markdown: "# About"},
				},
			}, nil
		},
	}

	resp, err := PollCrawl(context.Background(), mock, "crawl-456",
		WithPollInterval(5*time.Millisecond),
		WithPollCap(10*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPollCrawl_Timeout(t *testing.T) {
	mock := &mockClient{
		crawlStatusFunc: func(ctx context.Context, id string) (*CrawlStatusResponse, error) {
			return &CrawlStatusResponse{Status: "scraping"}, nil
		},
	}

	_, err := PollCrawl(context.Background(), mock, "crawl-timeout",
		WithPollInterval(10*time.Millisecond),
		WithPollCap(20*time.Millisecond),
		WithPollTimeout(50*time.Millisecond),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollCrawl_Failed(t *testing.T) {
	for _, status := range []string{"failed", "cancelled"} {
		t.Run(status, func(t *testing.T) {
			mock := &mockClient{
				crawlStatusFunc: func(ctx context.Context, id string) (*CrawlStatusResponse, error) {
					return &CrawlStatusResponse{Status: status}, nil
				},
			}

			_, err := PollCrawl(context.Background(), mock, "crawl-fail", WithPollInterval(10*time.Millisecond))
			require.Error(t, err)
			assert.Contains(t, err.Error(), status)
		})
	}
}

func TestPollCrawl_StatusError(t *testing.T) {
	mock := &mockClient{
		crawlStatusFunc: func(ctx context.Context, id string) (*CrawlStatusResponse, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, err := PollCrawl(context.Background(), mock, "crawl-err", WithPollInterval(10*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll crawl crawl-err")
}
