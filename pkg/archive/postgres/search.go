package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/archive"
)

// SearchText implements [archive.Store]. It performs a PostgreSQL full-text
// search over turn text and applies optional filters from opts.
//
// The query is passed to plainto_tsquery so no special operator syntax is
// required. Results are ordered by transcript and position.
func (s *Store) SearchText(ctx context.Context, query string, opts archive.SearchOpts) ([]archive.TurnHit, error) {
	args := []any{query} // $1 = FTS query string
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{
		"to_tsvector('english', text) @@ plainto_tsquery('english', $1)",
	}
	if opts.TranscriptID != "" {
		conditions = append(conditions, "transcript_id = "+next(opts.TranscriptID))
	}
	if opts.Speaker != align.SpeakerUnknown {
		conditions = append(conditions, "speaker = "+next(string(opts.Speaker)))
	}

	q := "SELECT transcript_id, idx, speaker, start_seconds, end_seconds, text\n" +
		"FROM   turns\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY transcript_id, idx"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: search text: %w", err)
	}

	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (archive.TurnHit, error) {
		var (
			hit     archive.TurnHit
			speaker string
		)
		if err := row.Scan(&hit.TranscriptID, &hit.Index, &speaker, &hit.Turn.Start, &hit.Turn.End, &hit.Turn.Text); err != nil {
			return archive.TurnHit{}, err
		}
		hit.Turn.Speaker = align.SpeakerID(speaker)
		return hit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres archive: search text: scan rows: %w", err)
	}
	if hits == nil {
		hits = []archive.TurnHit{}
	}
	return hits, nil
}

// SearchSemantic implements [archive.Store]. It embeds the query with the
// configured embeddings provider and finds the topK turns whose embeddings
// are closest by cosine distance, optionally filtered by opts.
//
// Results are ordered by ascending distance (most similar first).
func (s *Store) SearchSemantic(ctx context.Context, query string, topK int, opts archive.SearchOpts) ([]archive.SemanticHit, error) {
	if s.embedder == nil {
		return nil, archive.ErrSemanticDisabled
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: search semantic: embed query: %w", err)
	}

	args := []any{pgvector.NewVector(queryEmbedding)} // $1 = query vector
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"embedding IS NOT NULL"}
	if opts.TranscriptID != "" {
		conditions = append(conditions, "transcript_id = "+next(opts.TranscriptID))
	}
	if opts.Speaker != align.SpeakerUnknown {
		conditions = append(conditions, "speaker = "+next(string(opts.Speaker)))
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT transcript_id, idx, speaker, start_seconds, end_seconds, text,
		       embedding <=> $1 AS distance
		FROM   turns
		WHERE  %s
		ORDER  BY distance
		LIMIT  %s`, strings.Join(conditions, "\n  AND  "), limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: search semantic: %w", err)
	}

	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (archive.SemanticHit, error) {
		var (
			hit     archive.SemanticHit
			speaker string
		)
		if err := row.Scan(&hit.TranscriptID, &hit.Index, &speaker, &hit.Turn.Start, &hit.Turn.End, &hit.Turn.Text, &hit.Distance); err != nil {
			return archive.SemanticHit{}, err
		}
		hit.Turn.Speaker = align.SpeakerID(speaker)
		return hit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres archive: search semantic: scan rows: %w", err)
	}
	if hits == nil {
		hits = []archive.SemanticHit{}
	}
	return hits, nil
}
