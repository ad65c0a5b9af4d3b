// Package align reconciles two independently produced time-interval sequences
// over the same audio timeline: text segments from automatic speech
// recognition and speaker turns from diarization. The result is a single
// ordered, speaker-attributed transcript.
//
// The pipeline through this package is:
//
//	ASR segments + diarization turns
//	    → [Reconcile]   one speaker label per ASR segment
//	    → [Smooth]      optional flip suppression across tiny gaps
//	    → [MergeTurns]  coalesce consecutive same-speaker segments
//	    → [Formatter]   human-readable transcript lines
//
// Every function here is a pure computation over in-memory slices: no I/O, no
// goroutines, no process-wide state. All of them are safe to call repeatedly
// and concurrently on independent inputs. Inputs are never mutated; labeled
// segments and turns are freshly allocated.
//
// Both ASR and diarization boundaries are imprecise, so the reconciliation
// tolerates minor overlap and gaps between diarization turns as noise rather
// than rejecting them. The only structural failure is an interval whose start
// lies after its end, which signals a bug in an upstream collaborator and is
// reported via [ErrMalformedInterval] instead of being silently corrected.
package align

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedInterval reports an input interval with start > end. Errors
// returned by [Reconcile] wrap this sentinel; check with errors.Is.
var ErrMalformedInterval = errors.New("align: malformed interval")

// SpeakerID is an opaque speaker identity token assigned by the diarization
// collaborator (e.g. "SPEAKER_00"). The only meaningful operation on a
// SpeakerID is equality comparison; no ordering or numeric structure may be
// assumed.
type SpeakerID string

// SpeakerUnknown marks a segment whose speaker could not be resolved. It is a
// valid terminal state, not an error: the formatter renders it with a
// placeholder label.
const SpeakerUnknown SpeakerID = ""

// Interval is a half-open-agnostic time span in seconds, measured against the
// source media timeline. A valid Interval has 0 ≤ Start ≤ End.
type Interval struct {
	Start float64
	End   float64
}

// Duration returns the interval length in seconds.
func (iv Interval) Duration() float64 { return iv.End - iv.Start }

// Midpoint returns the temporal center of the interval.
func (iv Interval) Midpoint() float64 { return (iv.Start + iv.End) / 2 }

// Overlap returns the length of the time intersection with other, or zero
// when the intervals are disjoint.
func (iv Interval) Overlap(other Interval) float64 {
	return math.Max(0, math.Min(iv.End, other.End)-math.Max(iv.Start, other.Start))
}

// Gap returns the distance between the interval and other: zero when they
// touch or overlap, otherwise the length of the silence between them.
func (iv Interval) Gap(other Interval) float64 {
	switch {
	case iv.End < other.Start:
		return other.Start - iv.End
	case other.End < iv.Start:
		return iv.Start - other.End
	default:
		return 0
	}
}

// Segment is a timestamped piece of recognized text produced by the ASR
// collaborator. ASR segments arrive ordered by Start and non-overlapping.
type Segment struct {
	Interval
	Text string
}

// SpeakerTurn is a time span attributed to one speaker by the diarization
// collaborator. Turns arrive ordered by Start; they may leave gaps (silence)
// and may overlap slightly at the boundaries.
type SpeakerTurn struct {
	Interval
	Speaker SpeakerID
}

// LabeledSegment is an ASR segment with its assigned speaker. [Reconcile]
// creates exactly one per input segment and never mutates it afterwards.
type LabeledSegment struct {
	Segment
	Speaker SpeakerID
}

// Turn is a maximal run of consecutive labeled segments sharing one speaker.
// Text is the space-joined concatenation of the constituent segment texts in
// order; Start and End come from the first and last segment respectively.
type Turn struct {
	Speaker SpeakerID
	Start   float64
	End     float64
	Text    string
}

// validateIntervals returns a wrapped [ErrMalformedInterval] for the first
// interval in the sequence with start > end. kind names the sequence in the
// error message.
func validateIntervals(kind string, ivs []Interval) error {
	for i, iv := range ivs {
		if iv.Start > iv.End {
			return fmt.Errorf("%w: %s[%d] start %.3f > end %.3f", ErrMalformedInterval, kind, i, iv.Start, iv.End)
		}
	}
	return nil
}
