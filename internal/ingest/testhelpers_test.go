package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func createAccount(t *testing.T, st store.Store, slug string, seedURLs ...string) *model.Account {
	t.Helper()
	ctx := context.Background()
	a := &model.Account{Slug: slug, Name: slug + " Health"}
	require.NoError(t, st.UpsertAccount(ctx, a))
	for _, u := range seedURLs {
		require.NoError(t, st.UpsertSeed(ctx, &model.Seed{AccountID: a.ID, URL: u, Active: true}))
	}
	return a
}

func pages(contents ...string) *model.CrawlResult {
	res := &model.CrawlResult{Success: true, Source: "firecrawl"}
	for i, c := range contents {
		res.Pages = append(res.Pages, model.CrawledPage{
			URL:      "https://example.org/p" + string(rune('0'+i)),
			Title:    "Page",
			Markdown: c,
		})
	}
	return res
}
