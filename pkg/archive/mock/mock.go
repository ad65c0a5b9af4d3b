// Package mock provides an in-memory [archive.Store] for tests.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/archive"
)

// Compile-time interface check.
var _ archive.Store = (*Store)(nil)

// Store is an in-memory archive. Saved transcripts are kept in a map and
// SearchText falls back to case-insensitive substring matching. SearchSemantic
// always reports semantic search as disabled.
//
// Set SaveErr to force SaveTranscript failures. The zero value is ready to use
// and safe for concurrent access.
type Store struct {
	mu sync.Mutex

	SaveErr error

	transcripts map[string]archive.Transcript
}

// SaveTranscript stores t in memory, replacing any transcript with the same ID.
func (s *Store) SaveTranscript(_ context.Context, t archive.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if t.ID == "" {
		return fmt.Errorf("mock archive: empty transcript ID")
	}
	if s.transcripts == nil {
		s.transcripts = make(map[string]archive.Transcript)
	}
	s.transcripts[t.ID] = t
	return nil
}

// GetTranscript returns a stored transcript or a wrapped [archive.ErrNotFound].
func (s *Store) GetTranscript(_ context.Context, id string) (archive.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transcripts[id]
	if !ok {
		return archive.Transcript{}, fmt.Errorf("mock archive: get %q: %w", id, archive.ErrNotFound)
	}
	return t, nil
}

// ListTranscripts returns all stored transcripts, newest first.
func (s *Store) ListTranscripts(_ context.Context) ([]archive.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]archive.Transcript, 0, len(s.transcripts))
	for _, t := range s.transcripts {
		t.Turns = nil
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteTranscript removes a transcript. Unknown IDs are ignored.
func (s *Store) DeleteTranscript(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, id)
	return nil
}

// SearchText matches turns whose text contains query, case-insensitively.
func (s *Store) SearchText(_ context.Context, query string, opts archive.SearchOpts) ([]archive.TurnHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(query)
	hits := []archive.TurnHit{}
	for id, t := range s.transcripts {
		if opts.TranscriptID != "" && opts.TranscriptID != id {
			continue
		}
		for i, turn := range t.Turns {
			if opts.Speaker != align.SpeakerUnknown && turn.Speaker != opts.Speaker {
				continue
			}
			if !strings.Contains(strings.ToLower(turn.Text), needle) {
				continue
			}
			hits = append(hits, archive.TurnHit{TranscriptID: id, Index: i, Turn: turn})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].TranscriptID != hits[j].TranscriptID {
			return hits[i].TranscriptID < hits[j].TranscriptID
		}
		return hits[i].Index < hits[j].Index
	})
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

// SearchSemantic always returns [archive.ErrSemanticDisabled].
func (s *Store) SearchSemantic(context.Context, string, int, archive.SearchOpts) ([]archive.SemanticHit, error) {
	return nil, archive.ErrSemanticDisabled
}

// Len reports the number of stored transcripts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcripts)
}
