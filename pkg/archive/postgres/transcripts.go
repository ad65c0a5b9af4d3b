package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/archive"
)

// SaveTranscript implements [archive.Store]. The transcript row and all of
// its turns are written in a single transaction; a transcript with the same
// ID is replaced wholesale.
//
// With an embeddings provider configured, every turn text is embedded in one
// batch call before the transaction opens. An embedding failure aborts the
// save.
func (s *Store) SaveTranscript(ctx context.Context, t archive.Transcript) error {
	if t.ID == "" {
		return errors.New("postgres archive: save: empty transcript ID")
	}

	vectors, err := s.embedTurns(ctx, t.Turns)
	if err != nil {
		return fmt.Errorf("postgres archive: save %q: %w", t.ID, err)
	}

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres archive: save %q: begin: %w", t.ID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	// ON DELETE CASCADE clears old turns when an existing ID is replaced.
	if _, err := tx.Exec(ctx, `DELETE FROM transcripts WHERE id = $1`, t.ID); err != nil {
		return fmt.Errorf("postgres archive: save %q: clear existing: %w", t.ID, err)
	}

	const insertTranscript = `
		INSERT INTO transcripts (id, source, language, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insertTranscript, t.ID, t.Source, t.Language, t.Duration, createdAt); err != nil {
		return fmt.Errorf("postgres archive: save %q: insert transcript: %w", t.ID, err)
	}

	const insertTurn = `
		INSERT INTO turns (transcript_id, idx, speaker, start_seconds, end_seconds, text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	batch := &pgx.Batch{}
	for i, turn := range t.Turns {
		var embedding any // NULL without an embeddings provider
		if vectors != nil {
			vec := pgvector.NewVector(vectors[i])
			embedding = vec
		}
		batch.Queue(insertTurn, t.ID, i, string(turn.Speaker), turn.Start, turn.End, turn.Text, embedding)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres archive: save %q: insert turns: %w", t.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres archive: save %q: commit: %w", t.ID, err)
	}
	return nil
}

// embedTurns returns one vector per turn, or nil when no embeddings provider
// is configured.
func (s *Store) embedTurns(ctx context.Context, turns []align.Turn) ([][]float32, error) {
	if s.embedder == nil || len(turns) == 0 {
		return nil, nil
	}
	texts := make([]string, len(turns))
	for i, turn := range turns {
		texts[i] = turn.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed turns: %w", err)
	}
	if len(vectors) != len(turns) {
		return nil, fmt.Errorf("embed turns: got %d vectors for %d turns", len(vectors), len(turns))
	}
	return vectors, nil
}

// GetTranscript implements [archive.Store].
func (s *Store) GetTranscript(ctx context.Context, id string) (archive.Transcript, error) {
	const q = `
		SELECT id, source, language, duration_seconds, created_at
		FROM   transcripts
		WHERE  id = $1`

	var t archive.Transcript
	err := s.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Source, &t.Language, &t.Duration, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return archive.Transcript{}, fmt.Errorf("postgres archive: get %q: %w", id, archive.ErrNotFound)
	}
	if err != nil {
		return archive.Transcript{}, fmt.Errorf("postgres archive: get %q: %w", id, err)
	}

	const qTurns = `
		SELECT speaker, start_seconds, end_seconds, text
		FROM   turns
		WHERE  transcript_id = $1
		ORDER  BY idx`

	rows, err := s.pool.Query(ctx, qTurns, id)
	if err != nil {
		return archive.Transcript{}, fmt.Errorf("postgres archive: get %q: turns: %w", id, err)
	}
	t.Turns, err = collectTurns(rows)
	if err != nil {
		return archive.Transcript{}, fmt.Errorf("postgres archive: get %q: %w", id, err)
	}
	return t, nil
}

// ListTranscripts implements [archive.Store]. Turns are not populated.
func (s *Store) ListTranscripts(ctx context.Context) ([]archive.Transcript, error) {
	const q = `
		SELECT id, source, language, duration_seconds, created_at
		FROM   transcripts
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: list: %w", err)
	}

	transcripts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (archive.Transcript, error) {
		var t archive.Transcript
		err := row.Scan(&t.ID, &t.Source, &t.Language, &t.Duration, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres archive: list: scan rows: %w", err)
	}
	if transcripts == nil {
		transcripts = []archive.Transcript{}
	}
	return transcripts, nil
}

// DeleteTranscript implements [archive.Store]. Turns go with the transcript
// via ON DELETE CASCADE.
func (s *Store) DeleteTranscript(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM transcripts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres archive: delete %q: %w", id, err)
	}
	return nil
}

// collectTurns scans pgx rows into a slice of align.Turn values.
func collectTurns(rows pgx.Rows) ([]align.Turn, error) {
	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (align.Turn, error) {
		var (
			turn    align.Turn
			speaker string
		)
		if err := row.Scan(&speaker, &turn.Start, &turn.End, &turn.Text); err != nil {
			return align.Turn{}, err
		}
		turn.Speaker = align.SpeakerID(speaker)
		return turn, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan turns: %w", err)
	}
	if turns == nil {
		turns = []align.Turn{}
	}
	return turns, nil
}
