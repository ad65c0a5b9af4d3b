package align

import "strings"

// MergeTurns coalesces the ordered labeled segments into speaker turns: each
// turn is a maximal run of consecutive segments attributed to one speaker,
// with the segment texts space-joined in order.
//
// A segment labeled [SpeakerUnknown] continues the currently open turn
// instead of starting a new one: an isolated unresolved segment is far more
// often a diarization gap inside one speaker's continuous speech than a real
// speaker change, and splitting on every unknown would shred the transcript.
// Its text is appended to the open turn and the turn's speaker is unchanged.
//
// When the sequence opens with unknown segments before any resolved speaker,
// the first turn is emitted with speaker [SpeakerUnknown] as-is; it is not
// retroactively relabeled once a speaker appears.
//
// The result is non-nil for non-empty input, ordered by start, and
// non-overlapping whenever the input segments are non-overlapping. Empty
// input yields a nil slice.
func MergeTurns(labeled []LabeledSegment) []Turn {
	if len(labeled) == 0 {
		return nil
	}

	var (
		turns []Turn
		cur   Turn
		texts []string
		open  bool
	)
	emit := func() {
		cur.Text = strings.Join(texts, " ")
		turns = append(turns, cur)
	}

	for _, s := range labeled {
		switch {
		case !open:
			cur = Turn{Speaker: s.Speaker, Start: s.Start, End: s.End}
			texts = append(texts[:0], s.Text)
			open = true
		case s.Speaker == cur.Speaker || s.Speaker == SpeakerUnknown:
			cur.End = s.End
			texts = append(texts, s.Text)
		default:
			emit()
			cur = Turn{Speaker: s.Speaker, Start: s.Start, End: s.End}
			texts = append(texts[:0], s.Text)
		}
	}
	emit()
	return turns
}
