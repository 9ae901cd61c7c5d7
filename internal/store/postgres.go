package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/account-intel/internal/db"
	"github.com/sells-group/account-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

const documentColumns = `id, account_id, source_url, source_kind, title, raw_text, fingerprint, crawled_at, processed`

// preparedStatements lists queries to prepare on each new connection for
// the per-page hot path of ingestion.
var preparedStatements = map[string]string{
	"find_document_by_fingerprint": `SELECT ` + documentColumns + ` FROM documents WHERE COALESCE(account_id, '') = $1 AND fingerprint = $2 LIMIT 1`,
	"insert_document":              `INSERT INTO documents (` + documentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT DO NOTHING`,
	"insert_run_log":               `INSERT INTO pipeline_runs (id, kind, account_slug, status, processed, counts, error, error_type, duration_ms, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	slug       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS seeds (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id      TEXT NOT NULL REFERENCES accounts(id),
	url             TEXT NOT NULL,
	active          BOOLEAN NOT NULL DEFAULT true,
	priority        INTEGER NOT NULL DEFAULT 0,
	label           TEXT NOT NULL DEFAULT '',
	last_crawled_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (account_id, url)
);

CREATE INDEX IF NOT EXISTS idx_seeds_account_active ON seeds(account_id) WHERE active;

CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id  TEXT REFERENCES accounts(id),
	source_url  TEXT NOT NULL,
	source_kind TEXT NOT NULL CHECK (source_kind IN ('website', 'news')),
	title       TEXT NOT NULL DEFAULT '',
	raw_text    TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	crawled_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed   BOOLEAN NOT NULL DEFAULT false,
	classify_attempted_at TIMESTAMPTZ
);

ALTER TABLE documents ADD COLUMN IF NOT EXISTS classify_attempted_at TIMESTAMPTZ;

CREATE UNIQUE INDEX IF NOT EXISTS uq_documents_scope_fingerprint ON documents ((COALESCE(account_id, '')), fingerprint);
CREATE INDEX IF NOT EXISTS idx_documents_crawled_at ON documents(crawled_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_classify_queue ON documents(classify_attempted_at NULLS FIRST, crawled_at) WHERE account_id IS NULL AND source_kind = 'news';

CREATE TABLE IF NOT EXISTS document_embeddings (
	document_id TEXT PRIMARY KEY REFERENCES documents(id),
	vector      REAL[] NOT NULL,
	model       TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS briefings (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id     TEXT NOT NULL REFERENCES accounts(id),
	date           DATE NOT NULL,
	headline       TEXT NOT NULL,
	summary        TEXT NOT NULL,
	signals        JSONB NOT NULL DEFAULT '[]',
	document_count INTEGER NOT NULL DEFAULT 0,
	model          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_briefings_account_created ON briefings(account_id, created_at DESC);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind         TEXT NOT NULL,
	account_slug TEXT NOT NULL,
	status       TEXT NOT NULL CHECK (status IN ('success', 'error', 'no_recent_activity')),
	processed    INTEGER NOT NULL DEFAULT 0,
	counts       JSONB,
	error        TEXT,
	error_type   TEXT,
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_created ON pipeline_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_kind_account ON pipeline_runs(kind, account_slug);
`

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Accounts ---

const accountColumns = `id, slug, name, location, website, created_at`

func (s *PostgresStore) GetAccountBySlug(ctx context.Context, slug string) (*model.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE slug = $1`, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get account %s", slug)
	}
	return a, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY slug`)
}

func (s *PostgresStore) ListAccountsWithActiveSeeds(ctx context.Context) ([]model.Account, error) {
	return s.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts a
		 WHERE EXISTS (SELECT 1 FROM seeds s WHERE s.account_id = a.id AND s.active)
		 ORDER BY slug`)
}

func (s *PostgresStore) queryAccounts(ctx context.Context, query string, args ...any) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list accounts")
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan account")
		}
		accounts = append(accounts, *a)
	}
	return accounts, eris.Wrap(rows.Err(), "postgres: list accounts iterate")
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, slug, name, location, website, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (slug) DO UPDATE SET name = $3, location = $4, website = $5
		 RETURNING id`,
		account.ID, account.Slug, account.Name, account.Location, account.Website, account.CreatedAt,
	).Scan(&account.ID)
	return eris.Wrapf(err, "postgres: upsert account %s", account.Slug)
}

// --- Seeds ---

func (s *PostgresStore) ListActiveSeeds(ctx context.Context, accountID string) ([]model.Seed, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, url, active, priority, label, last_crawled_at, created_at
		 FROM seeds WHERE account_id = $1 AND active
		 ORDER BY created_at, id`,
		accountID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list active seeds %s", accountID)
	}
	defer rows.Close()

	var seeds []model.Seed
	for rows.Next() {
		var sd model.Seed
		if err := rows.Scan(&sd.ID, &sd.AccountID, &sd.URL, &sd.Active, &sd.Priority, &sd.Label, &sd.LastCrawledAt, &sd.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan seed")
		}
		seeds = append(seeds, sd)
	}
	return seeds, eris.Wrap(rows.Err(), "postgres: list seeds iterate")
}

func (s *PostgresStore) UpsertSeed(ctx context.Context, seed *model.Seed) error {
	if seed.ID == "" {
		seed.ID = uuid.New().String()
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO seeds (id, account_id, url, active, priority, label, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (account_id, url) DO UPDATE SET active = $4, priority = $5, label = $6
		 RETURNING id`,
		seed.ID, seed.AccountID, seed.URL, seed.Active, seed.Priority, seed.Label, seed.CreatedAt,
	).Scan(&seed.ID)
	return eris.Wrapf(err, "postgres: upsert seed %s", seed.URL)
}

// --- Documents ---

func scanDocumentPG(row pgx.Row) (*model.Document, error) {
	var d model.Document
	var kind string
	if err := row.Scan(&d.ID, &d.AccountID, &d.SourceURL, &kind, &d.Title, &d.RawText, &d.Fingerprint, &d.CrawledAt, &d.Processed); err != nil {
		return nil, err
	}
	d.SourceKind = model.SourceKind(kind)
	return &d, nil
}

func (s *PostgresStore) queryDocuments(ctx context.Context, op, query string, args ...any) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocumentPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	d, err := scanDocumentPG(s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	return d, nil
}

func (s *PostgresStore) FindDocumentByFingerprint(ctx context.Context, accountID *string, fingerprint string) (*model.Document, error) {
	d, err := scanDocumentPG(s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE COALESCE(account_id, '') = $1 AND fingerprint = $2 LIMIT 1`,
		scopeKey(accountID), fingerprint,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find document by fingerprint")
	}
	return d, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc *model.Document) (bool, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CrawledAt.IsZero() {
		doc.CrawledAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT DO NOTHING`,
		doc.ID, doc.AccountID, doc.SourceURL, string(doc.SourceKind), doc.Title, doc.RawText, doc.Fingerprint, doc.CrawledAt, doc.Processed,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert document %s", doc.SourceURL)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) UpdateDocumentOwner(ctx context.Context, documentID, accountID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET account_id = $1 WHERE id = $2 AND account_id IS NULL`,
		accountID, documentID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return eris.Wrapf(ErrDuplicateFingerprint, "document %s for account %s", documentID, accountID)
		}
		return eris.Wrapf(err, "postgres: update document owner %s", documentID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrAlreadyAttributed, "document %s", documentID)
	}
	return nil
}

func (s *PostgresStore) MarkClassifyAttempted(ctx context.Context, documentID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE documents SET classify_attempted_at = $1 WHERE id = $2`,
		at.UTC(), documentID,
	)
	return eris.Wrapf(err, "postgres: mark classify attempted %s", documentID)
}

// DeleteDocument removes a document and its embedding in one transaction.
func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin delete document")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM document_embeddings WHERE document_id = $1`, documentID); err != nil {
		return eris.Wrapf(err, "postgres: delete embedding %s", documentID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, documentID); err != nil {
		return eris.Wrapf(err, "postgres: delete document %s", documentID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete document")
}

func (s *PostgresStore) ListUnattributedNews(ctx context.Context, limit int) ([]model.Document, error) {
	return s.queryDocuments(ctx, "list unattributed news",
		`SELECT `+documentColumns+` FROM documents
		 WHERE account_id IS NULL AND source_kind = 'news' AND processed
		 ORDER BY classify_attempted_at NULLS FIRST, crawled_at, id LIMIT $1`,
		defaultLimit(limit, 200),
	)
}

func (s *PostgresStore) ListAccountDocumentsBetween(ctx context.Context, accountID string, since, until time.Time, limit int) ([]model.Document, error) {
	return s.queryDocuments(ctx, "list account documents",
		`SELECT `+documentColumns+` FROM documents
		 WHERE account_id = $1 AND crawled_at > $2 AND crawled_at < $3
		 ORDER BY crawled_at DESC, id LIMIT $4`,
		accountID, since, until, defaultLimit(limit, 100),
	)
}

// --- Embeddings ---

func (s *PostgresStore) ListDocumentsMissingEmbedding(ctx context.Context, limit int) ([]model.Document, error) {
	return s.queryDocuments(ctx, "list documents missing embedding",
		`SELECT d.id, d.account_id, d.source_url, d.source_kind, d.title, d.raw_text, d.fingerprint, d.crawled_at, d.processed
		 FROM documents d
		 LEFT JOIN document_embeddings e ON e.document_id = d.id
		 WHERE e.document_id IS NULL
		 ORDER BY d.crawled_at DESC, d.id LIMIT $1`,
		defaultLimit(limit, 100),
	)
}

func (s *PostgresStore) CountDocumentsMissingEmbedding(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents d
		 WHERE NOT EXISTS (SELECT 1 FROM document_embeddings e WHERE e.document_id = d.id)`,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count documents missing embedding")
}

func (s *PostgresStore) InsertEmbedding(ctx context.Context, emb model.DocumentEmbedding) error {
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO document_embeddings (document_id, vector, model, created_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (document_id) DO NOTHING`,
		emb.DocumentID, emb.Vector, emb.Model, emb.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert embedding %s", emb.DocumentID)
}

func (s *PostgresStore) GetEmbedding(ctx context.Context, documentID string) (*model.DocumentEmbedding, error) {
	var e model.DocumentEmbedding
	err := s.pool.QueryRow(ctx,
		`SELECT document_id, vector, model, created_at FROM document_embeddings WHERE document_id = $1`,
		documentID,
	).Scan(&e.DocumentID, &e.Vector, &e.Model, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get embedding %s", documentID)
	}
	return &e, nil
}

// --- Briefings ---

func (s *PostgresStore) LatestBriefing(ctx context.Context, accountID string) (*model.Briefing, error) {
	var b model.Briefing
	var signalsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, account_id, date, headline, summary, signals, document_count, model, created_at
		 FROM briefings WHERE account_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		accountID,
	).Scan(&b.ID, &b.AccountID, &b.Date, &b.Headline, &b.Summary, &signalsJSON, &b.DocumentCount, &b.Model, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest briefing %s", accountID)
	}
	if err := json.Unmarshal(signalsJSON, &b.Signals); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal signals")
	}
	return &b, nil
}

func (s *PostgresStore) InsertBriefing(ctx context.Context, b *model.Briefing) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	signalsJSON, err := json.Marshal(b.Signals)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal signals")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO briefings (id, account_id, date, headline, summary, signals, document_count, model, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.AccountID, b.Date, b.Headline, b.Summary, signalsJSON, b.DocumentCount, b.Model, b.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert briefing %s", b.AccountID)
}

// --- Run log ---

func (s *PostgresStore) AppendRunLog(ctx context.Context, run *model.PipelineRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	var countsJSON []byte
	if len(run.Counts) > 0 {
		var err error
		countsJSON, err = json.Marshal(run.Counts)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run counts")
		}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, kind, account_slug, status, processed, counts, error, error_type, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, string(run.Kind), run.AccountSlug, string(run.Status), run.Processed,
		countsJSON, nullString(run.Error), nullString(run.ErrorType), run.DurationMs, run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append run log")
}

func (s *PostgresStore) ListRunLogs(ctx context.Context, filter model.RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, kind, account_slug, status, processed, counts, error, error_type, duration_ms, created_at
	          FROM pipeline_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.AccountSlug != "" {
		query += fmt.Sprintf(` AND account_slug = $%d`, argIdx)
		args = append(args, filter.AccountSlug)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.CreatedAfter)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, defaultLimit(filter.Limit, 100))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list run logs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		var kind, status string
		var countsJSON []byte
		var errMsg, errType *string
		if err := rows.Scan(&r.ID, &kind, &r.AccountSlug, &status, &r.Processed, &countsJSON, &errMsg, &errType, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run log")
		}
		r.Kind = model.RunKind(kind)
		r.Status = model.RunStatus(status)
		if errMsg != nil {
			r.Error = *errMsg
		}
		if errType != nil {
			r.ErrorType = *errType
		}
		if len(countsJSON) > 0 {
			if err := json.Unmarshal(countsJSON, &r.Counts); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run counts")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list run logs iterate")
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
