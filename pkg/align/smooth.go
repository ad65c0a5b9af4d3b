package align

const (
	// DefaultMinTurnDuration is the noise gate applied to diarization turns
	// before reconciliation. Diarizers regularly emit sub-300 ms speaker
	// detections on breaths and cross-talk; keeping them causes rapid
	// speaker flipping in the merged transcript.
	DefaultMinTurnDuration = 0.3

	// DefaultSmoothingGap is the inter-segment gap below which Smooth forces
	// speaker continuity. Natural speech flows with pauses well under a
	// quarter second; a speaker change inside such a gap is almost always a
	// diarization boundary error.
	DefaultSmoothingGap = 0.25
)

// FilterShortTurns returns the diarization turns whose duration is at least
// minDuration seconds, preserving order. The input is not modified. A
// non-positive minDuration returns a copy of the input unchanged.
func FilterShortTurns(diar []SpeakerTurn, minDuration float64) []SpeakerTurn {
	kept := make([]SpeakerTurn, 0, len(diar))
	for _, t := range diar {
		if t.Duration() >= minDuration {
			kept = append(kept, t)
		}
	}
	return kept
}

// Smooth suppresses speaker flips across tiny gaps: whenever the gap between
// a labeled segment and its predecessor is below maxGap seconds, the segment
// conforms to the predecessor's speaker. The conformed label then carries
// forward, so a tightly packed run all collapses onto the run's first
// speaker.
//
// Smooth returns a fresh slice; the input segments are never mutated.
func Smooth(labeled []LabeledSegment, maxGap float64) []LabeledSegment {
	out := make([]LabeledSegment, len(labeled))
	copy(out, labeled)
	for i := 1; i < len(out); i++ {
		if out[i].Start-out[i-1].End < maxGap {
			out[i].Speaker = out[i-1].Speaker
		}
	}
	return out
}
