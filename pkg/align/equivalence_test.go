package align

import (
	"math/rand"
	"testing"
)

// randomInputs builds a start-sorted, non-overlapping ASR sequence and a
// start-sorted diarization sequence with random gaps and slight overlaps,
// mimicking real collaborator output.
func randomInputs(rng *rand.Rand) ([]Segment, []SpeakerTurn) {
	nASR := rng.Intn(40)
	asr := make([]Segment, 0, nASR)
	cursor := rng.Float64() * 2
	for range nASR {
		cursor += rng.Float64() * 1.5 // gap, may be zero
		dur := rng.Float64() * 3
		asr = append(asr, Segment{Interval: Interval{Start: cursor, End: cursor + dur}, Text: "w"})
		cursor += dur
	}

	speakerPool := []SpeakerID{"SPEAKER_0", "SPEAKER_1", "SPEAKER_2"}
	nDiar := rng.Intn(25)
	diar := make([]SpeakerTurn, 0, nDiar)
	cursor = rng.Float64() * 2
	for range nDiar {
		// Occasionally step backwards to create boundary overlap noise.
		cursor += rng.Float64()*2 - 0.3
		if cursor < 0 {
			cursor = 0
		}
		dur := rng.Float64() * 4
		diar = append(diar, SpeakerTurn{
			Interval: Interval{Start: cursor, End: cursor + dur},
			Speaker:  speakerPool[rng.Intn(len(speakerPool))],
		})
		cursor += dur
	}
	// Keep the sorted-by-start invariant despite the backward steps.
	for i := 1; i < len(diar); i++ {
		if diar[i].Start < diar[i-1].Start {
			diar[i].Start = diar[i-1].Start
			if diar[i].End < diar[i].Start {
				diar[i].End = diar[i].Start
			}
		}
	}
	return asr, diar
}

// The two-pointer sweep is an optimization only: it must agree with the
// naive full scan on every input, tie-breaks included.
func TestReconcile_SweepMatchesNaiveScan(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(0x5eed))
	for round := range 500 {
		asr, diar := randomInputs(rng)

		fast, err := Reconcile(asr, diar)
		if err != nil {
			t.Fatalf("round %d: Reconcile returned error: %v", round, err)
		}
		slow := reconcileNaive(asr, diar)

		if len(fast) != len(slow) {
			t.Fatalf("round %d: length mismatch: sweep=%d naive=%d", round, len(fast), len(slow))
		}
		for i := range fast {
			if fast[i] != slow[i] {
				t.Fatalf("round %d: segment %d: sweep=%+v naive=%+v\nasr=%+v\ndiar=%+v",
					round, i, fast[i], slow[i], asr, diar)
			}
		}
	}
}

func TestReconcile_OutputOrderFollowsInput(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for range 100 {
		asr, diar := randomInputs(rng)
		labeled, err := Reconcile(asr, diar)
		if err != nil {
			t.Fatalf("Reconcile returned error: %v", err)
		}
		if len(labeled) != len(asr) {
			t.Fatalf("got %d labeled segments, want %d", len(labeled), len(asr))
		}
		for i := range labeled {
			if labeled[i].Segment != asr[i] {
				t.Fatalf("segment %d reordered or altered: got %+v, want %+v", i, labeled[i].Segment, asr[i])
			}
		}
	}
}
