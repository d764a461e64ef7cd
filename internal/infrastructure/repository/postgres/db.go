package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockID int64 = 2026101701

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS corpora (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS corpus_members (
	corpus_id TEXT NOT NULL REFERENCES corpora(id) ON DELETE CASCADE,
	actor_id TEXT NOT NULL,
	elevated BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (corpus_id, actor_id)
);

CREATE TABLE IF NOT EXISTS evidence_chunks (
	id TEXT PRIMARY KEY,
	corpus_id TEXT NOT NULL REFERENCES corpora(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	file_id TEXT,
	file_name TEXT,
	partition TEXT,
	permission_level TEXT NOT NULL DEFAULT 'public',
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	search_vector tsvector GENERATED ALWAYS AS (
		setweight(to_tsvector('simple', coalesce(title, '')), 'A') ||
		setweight(to_tsvector('simple', content), 'B')
	) STORED,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evidence_chunks_search ON evidence_chunks USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_evidence_chunks_corpus ON evidence_chunks(corpus_id, permission_level);

CREATE TABLE IF NOT EXISTS retrieval_runs (
	id TEXT PRIMARY KEY,
	corpus_id TEXT NOT NULL,
	actor_id TEXT,
	query TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	expansions INTEGER NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	satisfied BOOLEAN NOT NULL,
	termination TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	duration_ms DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_retrieval_runs_corpus_started ON retrieval_runs(corpus_id, started_at DESC);
`

// EnsureSchema creates the tables used by the lexical backend, corpus access
// lookups and run auditing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
