// Package diarize defines the Provider interface for speaker diarization
// backends.
//
// A diarization provider answers "who spoke when": given the path of an
// extracted audio file it returns the list of speaker turns, each an interval
// on the source timeline labelled with an opaque speaker identity such as
// SPEAKER_0. Labels are stable within one recording but carry no meaning
// across recordings; mapping them to human names is a separate concern.
//
// Turns may overlap (crosstalk) and need not cover the whole recording; the
// alignment core is responsible for reconciling them with recognized text.
//
// Implementations must be safe for concurrent use; independent Diarize calls
// may run in parallel.
package diarize

import (
	"context"
	"errors"

	"github.com/MrWong99/voxalign/pkg/align"
)

// ErrModelUnavailable indicates the backing model or service could not be
// reached or loaded. Wrapped by provider errors; check with errors.Is.
var ErrModelUnavailable = errors.New("diarize: model unavailable")

// ErrAudioUnreadable indicates the audio file could not be opened or decoded
// by the backend.
var ErrAudioUnreadable = errors.New("diarize: audio unreadable")

// ErrNoSpeechDetected indicates the backend processed the audio successfully
// but found no speech at all.
var ErrNoSpeechDetected = errors.New("diarize: no speech detected")

// Provider is the abstraction over any speaker diarization backend.
type Provider interface {
	// Diarize segments the audio file at audioPath by speaker and returns
	// the turns sorted by start time. The context bounds the whole
	// operation; implementations must abort promptly on cancellation.
	//
	// Failure modes are reported by wrapping [ErrModelUnavailable],
	// [ErrAudioUnreadable] or [ErrNoSpeechDetected] where the cause is
	// known.
	Diarize(ctx context.Context, audioPath string) ([]align.SpeakerTurn, error)
}
