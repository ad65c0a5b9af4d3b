// Package postgres provides the PostgreSQL-backed implementation of
// [archive.Store].
//
// Transcript metadata and per-turn rows live in two tables sharing a single
// [pgxpool.Pool]. Turn text carries a GIN full-text index; when the store is
// created with an embeddings provider each turn is additionally embedded and
// indexed with a pgvector HNSW index for semantic search. The pgvector
// extension must be available in the target database; [Migrate] installs it
// via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, postgres.WithEmbeddings(embedder))
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.SaveTranscript(ctx, transcript)
//	hits, _ := store.SearchText(ctx, "quarterly roadmap", archive.SearchOpts{})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS transcripts (
    id               TEXT              PRIMARY KEY,
    source           TEXT              NOT NULL,
    language         TEXT              NOT NULL DEFAULT '',
    duration_seconds DOUBLE PRECISION  NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcripts_created_at
    ON transcripts (created_at);
`

// ddlTurns returns the turns DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlTurns(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS turns (
    transcript_id  TEXT              NOT NULL REFERENCES transcripts (id) ON DELETE CASCADE,
    idx            INTEGER           NOT NULL,
    speaker        TEXT              NOT NULL DEFAULT '',
    start_seconds  DOUBLE PRECISION  NOT NULL,
    end_seconds    DOUBLE PRECISION  NOT NULL,
    text           TEXT              NOT NULL,
    embedding      vector(%d),
    PRIMARY KEY (transcript_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_turns_speaker
    ON turns (speaker);

CREATE INDEX IF NOT EXISTS idx_turns_fts
    ON turns USING GIN (to_tsvector('english', text));

CREATE INDEX IF NOT EXISTS idx_turns_embedding
    ON turns USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
//
// embeddingDimensions must match the output dimension of the embedding model
// used for semantic indexing (e.g., 1536 for OpenAI text-embedding-3-small).
// Changing this value after the first migration requires a manual schema
// update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlTranscripts,
		ddlTurns(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
