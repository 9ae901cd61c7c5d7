package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-intel/internal/model"
)

// Store defines the persistence interface for the ingestion pipeline.
//
// Lookups that find nothing return (nil, nil). The dedup invariant on
// (account scope, fingerprint) is enforced by a unique index in every
// backend; InsertDocument reports a conflicting insert as inserted == false.
type Store interface {
	// Accounts
	GetAccountBySlug(ctx context.Context, slug string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListAccountsWithActiveSeeds(ctx context.Context) ([]model.Account, error)
	UpsertAccount(ctx context.Context, account *model.Account) error

	// Seeds
	ListActiveSeeds(ctx context.Context, accountID string) ([]model.Seed, error)
	UpsertSeed(ctx context.Context, seed *model.Seed) error

	// Documents
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	FindDocumentByFingerprint(ctx context.Context, accountID *string, fingerprint string) (*model.Document, error)
	InsertDocument(ctx context.Context, doc *model.Document) (inserted bool, err error)
	UpdateDocumentOwner(ctx context.Context, documentID, accountID string) error
	MarkClassifyAttempted(ctx context.Context, documentID string, at time.Time) error
	DeleteDocument(ctx context.Context, documentID string) error
	// ListUnattributedNews returns processed, unowned news. Documents never
	// visited by the classifier come first, then the least recently visited.
	ListUnattributedNews(ctx context.Context, limit int) ([]model.Document, error)
	// ListAccountDocumentsBetween returns the account's documents crawled in
	// (since, until), newest first.
	ListAccountDocumentsBetween(ctx context.Context, accountID string, since, until time.Time, limit int) ([]model.Document, error)

	// Embeddings
	ListDocumentsMissingEmbedding(ctx context.Context, limit int) ([]model.Document, error)
	CountDocumentsMissingEmbedding(ctx context.Context) (int, error)
	InsertEmbedding(ctx context.Context, emb model.DocumentEmbedding) error
	GetEmbedding(ctx context.Context, documentID string) (*model.DocumentEmbedding, error)

	// Briefings
	LatestBriefing(ctx context.Context, accountID string) (*model.Briefing, error)
	InsertBriefing(ctx context.Context, b *model.Briefing) error

	// Run log
	AppendRunLog(ctx context.Context, run *model.PipelineRun) error
	ListRunLogs(ctx context.Context, filter model.RunFilter) ([]model.PipelineRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrAlreadyAttributed is returned by UpdateDocumentOwner when the document
// does not exist or already has an owning account.
var ErrAlreadyAttributed = eris.New("store: document missing or already attributed")

// ErrDuplicateFingerprint is returned by UpdateDocumentOwner when the target
// account already holds a document with the same fingerprint.
var ErrDuplicateFingerprint = eris.New("store: fingerprint already present for account")

// scopeKey maps a nullable account ID onto the dedup scope used by the
// unique index: unattributed documents share the empty scope.
func scopeKey(accountID *string) string {
	if accountID == nil {
		return ""
	}
	return *accountID
}

func defaultLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
