package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/accounts"
	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
	anthropicpkg "github.com/sells-group/account-intel/pkg/anthropic"
)

const testRoster = `
accounts:
  - slug: acme
    name: Acme Health
    location: Denver, CO
    seeds:
      - url: https://acme.example.com
  - slug: globex
    name: Globex
    seeds:
      - url: https://globex.example.com/news
  - slug: initech
    name: Initech
`

func testConfig() *config.Config {
	c := &config.Config{}
	c.Ingest.Concurrency = 1
	c.Briefing.Concurrency = 1
	c.Embed.BatchSize = 2
	c.Embed.MaxBatches = 10
	c.Crawl.BreakerFailureThreshold = 5
	c.Crawl.BreakerResetSecs = 60
	c.Anthropic.HaikuModel = "claude-haiku-4-5-20251001"
	c.Anthropic.SonnetModel = "claude-sonnet-4-5-20250929"
	c.Briefing.LookbackHours = 168
	return c
}

func newTestEnv(t *testing.T, sc serviceClients) *appEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cmd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	file, err := accounts.Parse(strings.NewReader(testRoster))
	require.NoError(t, err)
	_, err = accounts.Import(context.Background(), st, file)
	require.NoError(t, err)

	return buildEnv(testConfig(), st, sc)
}

func insertDoc(t *testing.T, st store.Store, accountID *string, text string) {
	t.Helper()
	_, err := st.InsertDocument(context.Background(), &model.Document{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		SourceURL:   "https://example.com/" + uuid.NewString(),
		SourceKind:  model.SourceWebsite,
		RawText:     text,
		Fingerprint: uuid.NewString(),
		CrawledAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
}

// fakeEmbedder returns a one-dimensional vector per text.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, s := range texts {
		out[i] = []float32{float32(len(s))}
	}
	return out, nil
}

func (fakeEmbedder) Model() string { return "test-embedding" }

// cannedLLM answers every message with the same text.
type cannedLLM struct {
	reply string
	calls int
}

func (c *cannedLLM) CreateMessage(_ context.Context, _ anthropicpkg.MessageRequest) (*anthropicpkg.MessageResponse, error) {
	c.calls++
	return &anthropicpkg.MessageResponse{
		Content: []anthropicpkg.ContentBlock{{Type: "text", Text: c.reply}},
	}, nil
}
