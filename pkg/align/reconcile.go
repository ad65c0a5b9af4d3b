package align

import "math"

// Reconcile assigns a speaker to every ASR segment by resolving its overlap
// against the diarization turns. The output has exactly one labeled segment
// per input segment, in input order.
//
// Assignment policy, per segment:
//
//  1. The turn with the greatest overlap duration wins.
//  2. Ties on overlap are broken by the smaller distance between the turn's
//     midpoint and the segment's midpoint, then by the earlier turn start.
//     The result is deterministic for identical inputs.
//  3. A segment overlapping no turn at all (it falls in a diarization gap) is
//     backfilled from the nearest turn by gap distance, with the same
//     midpoint-then-earlier-start tie-break. When there are no turns at all
//     the segment stays [SpeakerUnknown].
//
// An empty asr input yields an empty, non-nil result. An empty diar input
// labels every segment [SpeakerUnknown]. Neither is an error.
//
// Any interval with start > end in either input aborts the whole call with an
// error wrapping [ErrMalformedInterval]; no partial result is returned. The
// inputs are otherwise trusted to be ordered by start as produced by the
// collaborators.
func Reconcile(asr []Segment, diar []SpeakerTurn) ([]LabeledSegment, error) {
	if err := validateReconcileInputs(asr, diar); err != nil {
		return nil, err
	}

	labeled := make([]LabeledSegment, len(asr))

	// Two-pointer sweep over the start-sorted inputs. lo is the first turn
	// that could still overlap the current (or any later) segment: turns
	// ending at or before the segment start can never overlap again because
	// segment starts are non-decreasing.
	lo := 0
	for i, seg := range asr {
		for lo < len(diar) && diar[lo].End <= seg.Start {
			lo++
		}
		best := -1
		for j := lo; j < len(diar) && diar[j].Start < seg.End; j++ {
			if betterCandidate(seg, diar, j, best, overlapScore) {
				best = j
			}
		}
		labeled[i] = LabeledSegment{Segment: seg, Speaker: SpeakerUnknown}
		if best >= 0 && seg.Overlap(diar[best].Interval) > 0 {
			labeled[i].Speaker = diar[best].Speaker
		}
	}

	backfill(labeled, diar)
	return labeled, nil
}

// reconcileNaive is the O(n·m) reference implementation of the assignment
// pass. It scans every turn for every segment and must agree with the sweep
// in Reconcile on all inputs, including tie-breaks; the property tests assert
// that equivalence.
func reconcileNaive(asr []Segment, diar []SpeakerTurn) []LabeledSegment {
	labeled := make([]LabeledSegment, len(asr))
	for i, seg := range asr {
		best := -1
		for j := range diar {
			if betterCandidate(seg, diar, j, best, overlapScore) {
				best = j
			}
		}
		labeled[i] = LabeledSegment{Segment: seg, Speaker: SpeakerUnknown}
		if best >= 0 && seg.Overlap(diar[best].Interval) > 0 {
			labeled[i].Speaker = diar[best].Speaker
		}
	}
	backfill(labeled, diar)
	return labeled
}

// backfill resolves segments left [SpeakerUnknown] by the overlap pass,
// assigning each the speaker of the turn with the smallest gap distance.
// Ties fall back to the midpoint-then-earlier-start rule. With no turns at
// all the segments remain unknown.
func backfill(labeled []LabeledSegment, diar []SpeakerTurn) {
	if len(diar) == 0 {
		return
	}
	for i := range labeled {
		if labeled[i].Speaker != SpeakerUnknown {
			continue
		}
		best := -1
		for j := range diar {
			if betterCandidate(labeled[i].Segment, diar, j, best, gapScore) {
				best = j
			}
		}
		labeled[i].Speaker = diar[best].Speaker
	}
}

// scoreFunc rates a turn as an assignment candidate for a segment. Higher is
// better.
type scoreFunc func(seg Segment, turn SpeakerTurn) float64

func overlapScore(seg Segment, turn SpeakerTurn) float64 {
	return seg.Overlap(turn.Interval)
}

// gapScore is the negated gap distance, so that the nearest turn scores
// highest and betterCandidate applies uniformly to both passes.
func gapScore(seg Segment, turn SpeakerTurn) float64 {
	return -seg.Gap(turn.Interval)
}

// betterCandidate reports whether diar[j] beats diar[best] as the assignment
// for seg under score. best == -1 means no candidate has been selected yet.
// On equal scores the turn whose midpoint lies closer to the segment midpoint
// wins; a remaining tie goes to the earlier-starting turn, which for the
// start-sorted input means the incumbent is kept.
func betterCandidate(seg Segment, diar []SpeakerTurn, j, best int, score scoreFunc) bool {
	if best < 0 {
		return true
	}
	sj, sb := score(seg, diar[j]), score(seg, diar[best])
	if sj != sb {
		return sj > sb
	}
	mid := seg.Midpoint()
	dj := math.Abs(diar[j].Midpoint() - mid)
	db := math.Abs(diar[best].Midpoint() - mid)
	if dj != db {
		return dj < db
	}
	return diar[j].Start < diar[best].Start
}

func validateReconcileInputs(asr []Segment, diar []SpeakerTurn) error {
	ivs := make([]Interval, len(asr))
	for i, s := range asr {
		ivs[i] = s.Interval
	}
	if err := validateIntervals("asr", ivs); err != nil {
		return err
	}
	ivs = ivs[:0]
	for _, t := range diar {
		ivs = append(ivs, t.Interval)
	}
	return validateIntervals("diarization", ivs)
}
