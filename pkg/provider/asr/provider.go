// Package asr defines the Provider interface for batch speech recognition
// backends.
//
// An ASR provider wraps a transcription engine (a local whisper.cpp model or
// server, the OpenAI transcription API, Deepgram pre-recorded, ...) and
// exposes a single batch operation: given the path of an extracted audio
// file, return the ordered sequence of timestamped text segments. Providers
// perform no speaker attribution; that belongs to the diarization
// collaborator and the alignment core.
//
// Implementations must be safe for concurrent use; independent Transcribe
// calls may run in parallel.
package asr

import (
	"context"
	"errors"

	"github.com/MrWong99/voxalign/pkg/align"
)

// ErrModelUnavailable indicates the backing model or service could not be
// reached or loaded. Wrapped by provider errors; check with errors.Is.
var ErrModelUnavailable = errors.New("asr: model unavailable")

// ErrAudioUnreadable indicates the audio file could not be opened or decoded
// by the backend.
var ErrAudioUnreadable = errors.New("asr: audio unreadable")

// Result is the outcome of one batch transcription.
type Result struct {
	// Segments is the ordered, non-overlapping sequence of recognized text
	// spans, sorted by start time.
	Segments []align.Segment

	// Language is the detected or configured language code, when the backend
	// reports one.
	Language string

	// Duration is the audio duration in seconds, when the backend reports it.
	Duration float64
}

// Provider is the abstraction over any batch speech recognition backend.
type Provider interface {
	// Transcribe runs speech recognition over the audio file at audioPath
	// and returns the ordered segment sequence. The context bounds the whole
	// operation; implementations must abort promptly on cancellation.
	//
	// Failure modes are reported by wrapping [ErrModelUnavailable] or
	// [ErrAudioUnreadable] where the cause is known.
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}
