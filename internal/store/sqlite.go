package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/account-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS seeds (
	id              TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL REFERENCES accounts(id),
	url             TEXT NOT NULL,
	active          INTEGER NOT NULL DEFAULT 1,
	priority        INTEGER NOT NULL DEFAULT 0,
	label           TEXT NOT NULL DEFAULT '',
	last_crawled_at DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (account_id, url)
);

CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	account_id  TEXT REFERENCES accounts(id),
	source_url  TEXT NOT NULL,
	source_kind TEXT NOT NULL CHECK (source_kind IN ('website', 'news')),
	title       TEXT NOT NULL DEFAULT '',
	raw_text    TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	crawled_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	processed   INTEGER NOT NULL DEFAULT 0,
	classify_attempted_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_documents_scope_fingerprint ON documents (COALESCE(account_id, ''), fingerprint);
CREATE INDEX IF NOT EXISTS idx_documents_crawled_at ON documents(crawled_at);

CREATE TABLE IF NOT EXISTS document_embeddings (
	document_id TEXT PRIMARY KEY REFERENCES documents(id),
	vector      TEXT NOT NULL,
	model       TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS briefings (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL REFERENCES accounts(id),
	date           DATE NOT NULL,
	headline       TEXT NOT NULL,
	summary        TEXT NOT NULL,
	signals        TEXT NOT NULL DEFAULT '[]',
	document_count INTEGER NOT NULL DEFAULT 0,
	model          TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	account_slug TEXT NOT NULL,
	status       TEXT NOT NULL CHECK (status IN ('success', 'error', 'no_recent_activity')),
	processed    INTEGER NOT NULL DEFAULT 0,
	counts       TEXT,
	error        TEXT,
	error_type   TEXT,
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_seeds_account ON seeds(account_id);
CREATE INDEX IF NOT EXISTS idx_briefings_account ON briefings(account_id, created_at);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_created ON pipeline_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	// Databases created before the classify queue column existed.
	return s.addColumnIfMissing(ctx, "documents", "classify_attempted_at", "DATETIME")
}

func (s *SQLiteStore) addColumnIfMissing(ctx context.Context, table, column, decl string) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('`+table+`') WHERE name = ?`, column,
	).Scan(&n)
	if err != nil {
		return eris.Wrapf(err, "sqlite: inspect %s", table)
	}
	if n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `ALTER TABLE `+table+` ADD COLUMN `+column+` `+decl)
	return eris.Wrapf(err, "sqlite: add column %s.%s", table, column)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Accounts ---

func (s *SQLiteStore) GetAccountBySlug(ctx context.Context, slug string) (*model.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get account %s", slug)
	}
	return a, nil
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY slug`)
}

func (s *SQLiteStore) ListAccountsWithActiveSeeds(ctx context.Context) ([]model.Account, error) {
	return s.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts a
		 WHERE EXISTS (SELECT 1 FROM seeds s WHERE s.account_id = a.id AND s.active = 1)
		 ORDER BY slug`)
}

func (s *SQLiteStore) queryAccounts(ctx context.Context, query string) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list accounts")
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan account")
		}
		accounts = append(accounts, *a)
	}
	return accounts, eris.Wrap(rows.Err(), "sqlite: list accounts iterate")
}

func (s *SQLiteStore) UpsertAccount(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO accounts (id, slug, name, location, website, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (slug) DO UPDATE SET name = excluded.name, location = excluded.location, website = excluded.website
		 RETURNING id`,
		account.ID, account.Slug, account.Name, account.Location, account.Website, account.CreatedAt,
	).Scan(&account.ID)
	return eris.Wrapf(err, "sqlite: upsert account %s", account.Slug)
}

// --- Seeds ---

func (s *SQLiteStore) ListActiveSeeds(ctx context.Context, accountID string) ([]model.Seed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, url, active, priority, label, last_crawled_at, created_at
		 FROM seeds WHERE account_id = ? AND active = 1
		 ORDER BY created_at, id`,
		accountID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list active seeds %s", accountID)
	}
	defer rows.Close()

	var seeds []model.Seed
	for rows.Next() {
		var sd model.Seed
		var lastCrawled sql.NullTime
		if err := rows.Scan(&sd.ID, &sd.AccountID, &sd.URL, &sd.Active, &sd.Priority, &sd.Label, &lastCrawled, &sd.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan seed")
		}
		if lastCrawled.Valid {
			t := lastCrawled.Time
			sd.LastCrawledAt = &t
		}
		seeds = append(seeds, sd)
	}
	return seeds, eris.Wrap(rows.Err(), "sqlite: list seeds iterate")
}

func (s *SQLiteStore) UpsertSeed(ctx context.Context, seed *model.Seed) error {
	if seed.ID == "" {
		seed.ID = uuid.New().String()
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO seeds (id, account_id, url, active, priority, label, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (account_id, url) DO UPDATE SET active = excluded.active, priority = excluded.priority, label = excluded.label
		 RETURNING id`,
		seed.ID, seed.AccountID, seed.URL, seed.Active, seed.Priority, seed.Label, seed.CreatedAt,
	).Scan(&seed.ID)
	return eris.Wrapf(err, "sqlite: upsert seed %s", seed.URL)
}

// --- Documents ---

func (s *SQLiteStore) queryDocuments(ctx context.Context, op, query string, args ...any) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return d, nil
}

func (s *SQLiteStore) FindDocumentByFingerprint(ctx context.Context, accountID *string, fingerprint string) (*model.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE COALESCE(account_id, '') = ? AND fingerprint = ? LIMIT 1`,
		scopeKey(accountID), fingerprint,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find document by fingerprint")
	}
	return d, nil
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *model.Document) (bool, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CrawledAt.IsZero() {
		doc.CrawledAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		doc.ID, toNullString(doc.AccountID), doc.SourceURL, string(doc.SourceKind), doc.Title, doc.RawText, doc.Fingerprint, doc.CrawledAt.UTC(), doc.Processed,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert document %s", doc.SourceURL)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) UpdateDocumentOwner(ctx context.Context, documentID, accountID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET account_id = ? WHERE id = ? AND account_id IS NULL`,
		accountID, documentID,
	)
	if err != nil {
		var sqErr *sqlite.Error
		if errors.As(err, &sqErr) && sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return eris.Wrapf(ErrDuplicateFingerprint, "document %s for account %s", documentID, accountID)
		}
		return eris.Wrapf(err, "sqlite: update document owner %s", documentID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrAlreadyAttributed, "document %s", documentID)
	}
	return nil
}

func (s *SQLiteStore) MarkClassifyAttempted(ctx context.Context, documentID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET classify_attempted_at = ? WHERE id = ?`,
		at.UTC(), documentID,
	)
	return eris.Wrapf(err, "sqlite: mark classify attempted %s", documentID)
}

// DeleteDocument removes a document and its embedding in one transaction.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete document")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_embeddings WHERE document_id = ?`, documentID); err != nil {
		return eris.Wrapf(err, "sqlite: delete embedding %s", documentID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID); err != nil {
		return eris.Wrapf(err, "sqlite: delete document %s", documentID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete document")
}

func (s *SQLiteStore) ListUnattributedNews(ctx context.Context, limit int) ([]model.Document, error) {
	return s.queryDocuments(ctx, "list unattributed news",
		`SELECT `+documentColumns+` FROM documents
		 WHERE account_id IS NULL AND source_kind = 'news' AND processed = 1
		 ORDER BY classify_attempted_at NULLS FIRST, crawled_at, id LIMIT ?`,
		defaultLimit(limit, 200),
	)
}

func (s *SQLiteStore) ListAccountDocumentsBetween(ctx context.Context, accountID string, since, until time.Time, limit int) ([]model.Document, error) {
	return s.queryDocuments(ctx, "list account documents",
		`SELECT `+documentColumns+` FROM documents
		 WHERE account_id = ? AND crawled_at > ? AND crawled_at < ?
		 ORDER BY crawled_at DESC, id LIMIT ?`,
		accountID, since.UTC(), until.UTC(), defaultLimit(limit, 100),
	)
}

// --- Embeddings ---

func (s *SQLiteStore) ListDocumentsMissingEmbedding(ctx context.Context, limit int) ([]model.Document, error) {
	return s.queryDocuments(ctx, "list documents missing embedding",
		`SELECT d.id, d.account_id, d.source_url, d.source_kind, d.title, d.raw_text, d.fingerprint, d.crawled_at, d.processed
		 FROM documents d
		 LEFT JOIN document_embeddings e ON e.document_id = d.id
		 WHERE e.document_id IS NULL
		 ORDER BY d.crawled_at DESC, d.id LIMIT ?`,
		defaultLimit(limit, 100),
	)
}

func (s *SQLiteStore) CountDocumentsMissingEmbedding(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents d
		 WHERE NOT EXISTS (SELECT 1 FROM document_embeddings e WHERE e.document_id = d.id)`,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count documents missing embedding")
}

func (s *SQLiteStore) InsertEmbedding(ctx context.Context, emb model.DocumentEmbedding) error {
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}
	vecJSON, err := json.Marshal(emb.Vector)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal vector")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_embeddings (document_id, vector, model, created_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT (document_id) DO NOTHING`,
		emb.DocumentID, string(vecJSON), emb.Model, emb.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert embedding %s", emb.DocumentID)
}

func (s *SQLiteStore) GetEmbedding(ctx context.Context, documentID string) (*model.DocumentEmbedding, error) {
	var e model.DocumentEmbedding
	var vecJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id, vector, model, created_at FROM document_embeddings WHERE document_id = ?`,
		documentID,
	).Scan(&e.DocumentID, &vecJSON, &e.Model, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get embedding %s", documentID)
	}
	if err := json.Unmarshal([]byte(vecJSON), &e.Vector); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal vector")
	}
	return &e, nil
}

// --- Briefings ---

func (s *SQLiteStore) LatestBriefing(ctx context.Context, accountID string) (*model.Briefing, error) {
	var b model.Briefing
	var signalsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, date, headline, summary, signals, document_count, model, created_at
		 FROM briefings WHERE account_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		accountID,
	).Scan(&b.ID, &b.AccountID, &b.Date, &b.Headline, &b.Summary, &signalsJSON, &b.DocumentCount, &b.Model, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest briefing %s", accountID)
	}
	if err := json.Unmarshal([]byte(signalsJSON), &b.Signals); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal signals")
	}
	return &b, nil
}

func (s *SQLiteStore) InsertBriefing(ctx context.Context, b *model.Briefing) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	signals := b.Signals
	if signals == nil {
		signals = []string{}
	}
	signalsJSON, err := json.Marshal(signals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal signals")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO briefings (id, account_id, date, headline, summary, signals, document_count, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.AccountID, b.Date.UTC(), b.Headline, b.Summary, string(signalsJSON), b.DocumentCount, b.Model, b.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert briefing %s", b.AccountID)
}

// --- Run log ---

func (s *SQLiteStore) AppendRunLog(ctx context.Context, run *model.PipelineRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	var counts sql.NullString
	if len(run.Counts) > 0 {
		countsJSON, err := json.Marshal(run.Counts)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run counts")
		}
		counts = sql.NullString{String: string(countsJSON), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, kind, account_slug, status, processed, counts, error, error_type, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.AccountSlug, string(run.Status), run.Processed,
		counts, toNullString(nullString(run.Error)), toNullString(nullString(run.ErrorType)), run.DurationMs, run.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: append run log")
}

func (s *SQLiteStore) ListRunLogs(ctx context.Context, filter model.RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, kind, account_slug, status, processed, counts, error, error_type, duration_ms, created_at
	          FROM pipeline_runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.AccountSlug != "" {
		query += ` AND account_slug = ?`
		args = append(args, filter.AccountSlug)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, defaultLimit(filter.Limit, 100))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list run logs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		var kind, status string
		var counts, errMsg, errType sql.NullString
		if err := rows.Scan(&r.ID, &kind, &r.AccountSlug, &status, &r.Processed, &counts, &errMsg, &errType, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run log")
		}
		r.Kind = model.RunKind(kind)
		r.Status = model.RunStatus(status)
		r.Error = errMsg.String
		r.ErrorType = errType.String
		if counts.Valid {
			if err := json.Unmarshal([]byte(counts.String), &r.Counts); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run counts")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list run logs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanAccount(row scannable) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.Slug, &a.Name, &a.Location, &a.Website, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanDocument(row scannable) (*model.Document, error) {
	var d model.Document
	var accountID sql.NullString
	var kind string
	if err := row.Scan(&d.ID, &accountID, &d.SourceURL, &kind, &d.Title, &d.RawText, &d.Fingerprint, &d.CrawledAt, &d.Processed); err != nil {
		return nil, err
	}
	if accountID.Valid {
		id := accountID.String
		d.AccountID = &id
	}
	d.SourceKind = model.SourceKind(kind)
	return &d, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
