package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-api-key", WithBaseURL(srv.URL))
	return srv, c
}

func TestCrawl(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantID     string
		wantErr    bool
		wantAPIErr bool
		wantStatus int
	}{
		{
			name: "happy path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/crawl", r.URL.Path)
				assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req CrawlRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "https://mercy.com/news", req.URL)
				assert.Equal(t, 2, req.MaxDepth)
				assert.Equal(t, 25, req.Limit)
				require.NotNil(t, req.ScrapeOptions)
				assert.Equal(t, []string{"markdown"}, req.ScrapeOptions.Formats)

				json.NewEncoder(w).Encode(CrawlResponse{Success: true, ID: "crawl-123"}) //nolint:errcheck
			},
			wantID: "crawl-123",
		},
		{
			name: "not accepted",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(CrawlResponse{Success: false}) //nolint:errcheck
			},
			wantErr: true,
		},
		{
			name: "auth error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"Unauthorized"}`)) //nolint:errcheck
			},
			wantErr:    true,
			wantAPIErr: true,
			wantStatus: 401,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal server error"}`)) //nolint:errcheck
			},
			wantErr:    true,
			wantAPIErr: true,
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestServer(t, tt.handler)
			resp, err := c.Crawl(context.Background(), CrawlRequest{
				URL:           "https://mercy.com/news",
				MaxDepth:      2,
				Limit:         25,
				ScrapeOptions: &ScrapeOptions{Formats: []string{"markdown"}, OnlyMainContent: true},
			})

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantAPIErr {
					var apiErr *APIError
					require.ErrorAs(t, err, &apiErr)
					assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, resp.ID)
		})
	}
}

func TestGetCrawlStatus_MetadataPages(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/crawl/crawl-123", r.URL.Path)
		w.Write([]byte(`{
			"status": "completed",
			"total": 2,
			"completed": 2,
			"data": [
				{"markdown": "# Home", "metadata": {"title": "Home", "sourceURL": "https://mercy.com/", "statusCode": 200}},
				{"url": "https://mercy.com/about", "title": "About", "statusCode": 200, "markdown": "# About"}
			]
		}`)) //nolint:errcheck
	})

	resp, err := c.GetCrawlStatus(context.Background(), "crawl-123")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 2, resp.Completed)
	require.Len(t, resp.Data, 2)

	assert.Equal(t, "https://mercy.com/", resp.Data[0].PageURL())
	assert.Equal(t, "Home", resp.Data[0].PageTitle())
	assert.Equal(t, 200, resp.Data[0].PageStatus())

	assert.Equal(t, "https://mercy.com/about", resp.Data[1].PageURL())
	assert.Equal(t, "About", resp.Data[1].PageTitle())
	assert.Equal(t, 200, resp.Data[1].PageStatus())
}

func TestGetCrawlStatus_Error(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`)) //nolint:errcheck
	})

	_, err := c.GetCrawlStatus(context.Background(), "nonexistent")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.False(t, apiErr.Transient())
}

func TestScrape(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scrape", r.URL.Path)

		var req ScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://mercy.com/about", req.URL)

		json.NewEncoder(w).Encode(ScrapeResponse{ //nolint:errcheck
			Success: true,
			Data:    PageData{Markdown: "# About Us", Metadata: PageMetadata{Title: "About", SourceURL: "https://mercy.com/about", StatusCode: 200}},
		})
	})

	resp, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://mercy.com/about", Formats: []string{"markdown"}})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "About", resp.Data.PageTitle())
}

func TestScrape_RateLimited(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`)) //nolint:errcheck
	})

	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://mercy.com"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.True(t, apiErr.Transient())
}

func TestContextCancellation(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should have been cancelled")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Crawl(ctx, CrawlRequest{URL: "https://example.com"})
	require.Error(t, err)
}

func TestAPIError_Error(t *testing.T) {
	t.Parallel()
	e := &APIError{StatusCode: 429, Body: `{"error":"rate limited"}`}
	assert.Equal(t, `firecrawl: HTTP 429: {"error":"rate limited"}`, e.Error())
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()
	customClient := &http.Client{}
	c := NewClient("key", WithHTTPClient(customClient), WithBaseURL(""))
	hc := c.(*httpClient)
	assert.Equal(t, customClient, hc.http)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
}

func TestMalformedJSON(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`)) //nolint:errcheck
	})

	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
