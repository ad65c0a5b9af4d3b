// Package archive defines the storage abstraction for finished transcripts.
//
// An archive Store persists speaker-attributed transcripts and makes them
// searchable two ways: PostgreSQL full-text search over turn text, and
// vector similarity search over per-turn embeddings. The archive is an
// optional stage; pipelines run fine without one.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/voxalign/pkg/align"
)

// ErrNotFound reports a transcript ID with no stored record. Check with
// errors.Is.
var ErrNotFound = errors.New("archive: transcript not found")

// ErrSemanticDisabled is returned by semantic search on stores that were
// created without an embeddings provider.
var ErrSemanticDisabled = errors.New("archive: semantic search disabled, no embeddings provider configured")

// Transcript is one archived recording: source metadata plus the final
// speaker-attributed turns in chronological order.
type Transcript struct {
	ID        string
	Source    string // original media path or name
	Language  string // BCP-47 tag reported by the ASR provider, may be empty
	Duration  float64
	CreatedAt time.Time
	Turns     []align.Turn
}

// TurnHit is a single turn matched by a search, with enough context to locate
// it inside its transcript.
type TurnHit struct {
	TranscriptID string
	Index        int // position within the transcript's turn list
	Turn         align.Turn
}

// SemanticHit is a TurnHit ranked by vector similarity. Distance is the
// cosine distance to the query embedding; smaller is more similar.
type SemanticHit struct {
	TurnHit
	Distance float64
}

// SearchOpts narrows a search. Zero values mean "no filter".
type SearchOpts struct {
	TranscriptID string
	Speaker      align.SpeakerID
	Limit        int
}

// Store is the abstraction over transcript archive backends.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveTranscript persists t and indexes its turns for search. Saving a
	// transcript whose ID already exists replaces the stored record.
	SaveTranscript(ctx context.Context, t Transcript) error

	// GetTranscript returns the transcript with the given ID including all of
	// its turns, or a wrapped ErrNotFound.
	GetTranscript(ctx context.Context, id string) (Transcript, error)

	// ListTranscripts returns metadata for every archived transcript, newest
	// first. Turns are not populated; fetch them with GetTranscript.
	ListTranscripts(ctx context.Context) ([]Transcript, error)

	// DeleteTranscript removes a transcript and its turns. Deleting an unknown
	// ID is not an error.
	DeleteTranscript(ctx context.Context, id string) error

	// SearchText performs a full-text search over archived turn text.
	SearchText(ctx context.Context, query string, opts SearchOpts) ([]TurnHit, error)

	// SearchSemantic embeds the query and returns the topK most similar turns
	// by cosine distance. Stores without an embeddings provider return
	// ErrSemanticDisabled.
	SearchSemantic(ctx context.Context, query string, topK int, opts SearchOpts) ([]SemanticHit, error)
}
