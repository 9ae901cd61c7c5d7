package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_InsertDocument_RejectsUnknownKind(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.InsertDocument(context.Background(), &model.Document{
		SourceURL:   "https://example.com",
		SourceKind:  model.SourceKind("rss"),
		RawText:     "x",
		Fingerprint: "fp",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: insert document")
}

func TestSQLite_InsertDocument_AssignsIDAndTime(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	doc := &model.Document{SourceURL: "https://news.example/1", SourceKind: model.SourceNews, RawText: "x", Fingerprint: "fp"}
	inserted, err := st.InsertDocument(ctx, doc)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, doc.ID)
	assert.WithinDuration(t, time.Now().UTC(), doc.CrawledAt, time.Minute)

	got, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.SourceNews, got.SourceKind)
	assert.False(t, got.Processed)
	assert.WithinDuration(t, doc.CrawledAt, got.CrawledAt, time.Second)
}

func TestSQLite_GetDocument_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	got, err := st.GetDocument(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Seed_LastCrawledNull(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := &model.Account{Slug: "oscar", Name: "Oscar"}
	require.NoError(t, st.UpsertAccount(ctx, a))
	require.NoError(t, st.UpsertSeed(ctx, &model.Seed{AccountID: a.ID, URL: "https://oscar.org", Active: true, Priority: 3, Label: "home"}))

	seeds, err := st.ListActiveSeeds(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Nil(t, seeds[0].LastCrawledAt)
	assert.Equal(t, 3, seeds[0].Priority)
	assert.Equal(t, "home", seeds[0].Label)
}

func TestSQLite_Seed_UpsertDeactivates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := &model.Account{Slug: "papa", Name: "Papa"}
	require.NoError(t, st.UpsertAccount(ctx, a))
	seed := &model.Seed{AccountID: a.ID, URL: "https://papa.org", Active: true}
	require.NoError(t, st.UpsertSeed(ctx, seed))

	again := &model.Seed{AccountID: a.ID, URL: "https://papa.org", Active: false}
	require.NoError(t, st.UpsertSeed(ctx, again))
	assert.Equal(t, seed.ID, again.ID)

	seeds, err := st.ListActiveSeeds(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, seeds)
}

func TestSQLite_RunLog_EmptyCountsStoredNull(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendRunLog(ctx, &model.PipelineRun{Kind: model.RunKindClassify, AccountSlug: model.AllAccounts, Status: model.RunStatusSuccess}))

	runs, err := st.ListRunLogs(ctx, model.RunFilter{Kind: model.RunKindClassify})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].Counts)
}

func TestSQLite_RunLog_RejectsUnknownStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.AppendRunLog(context.Background(), &model.PipelineRun{Kind: model.RunKindIngest, AccountSlug: "x", Status: model.RunStatus("running")})
	require.Error(t, err)
}
