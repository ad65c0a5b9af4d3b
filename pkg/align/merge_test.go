package align_test

import (
	"testing"

	"github.com/MrWong99/voxalign/pkg/align"
)

func labeledSeg(start, end float64, text, speaker string) align.LabeledSegment {
	return align.LabeledSegment{Segment: seg(start, end, text), Speaker: align.SpeakerID(speaker)}
}

func TestMergeTurns_CoalescesSameSpeaker(t *testing.T) {
	t.Parallel()

	// Scenario A, second half: both segments labeled SPEAKER_0 become a
	// single turn with space-joined text.
	labeled := []align.LabeledSegment{
		labeledSeg(0, 2, "hello", "SPEAKER_0"),
		labeledSeg(2, 4, "world", "SPEAKER_0"),
	}

	turns := align.MergeTurns(labeled)
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	want := align.Turn{Speaker: "SPEAKER_0", Start: 0, End: 4, Text: "hello world"}
	if turns[0] != want {
		t.Errorf("turn=%+v, want %+v", turns[0], want)
	}
}

func TestMergeTurns_SplitsOnSpeakerChange(t *testing.T) {
	t.Parallel()

	labeled := []align.LabeledSegment{
		labeledSeg(0, 2, "hi", "SPEAKER_0"),
		labeledSeg(2, 4, "there", "SPEAKER_1"),
	}

	turns := align.MergeTurns(labeled)
	want := []align.Turn{
		{Speaker: "SPEAKER_0", Start: 0, End: 2, Text: "hi"},
		{Speaker: "SPEAKER_1", Start: 2, End: 4, Text: "there"},
	}
	if len(turns) != len(want) {
		t.Fatalf("got %d turns, want %d", len(turns), len(want))
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("turn %d: got %+v, want %+v", i, turns[i], want[i])
		}
	}
}

func TestMergeTurns_UnknownContinuesOpenTurn(t *testing.T) {
	t.Parallel()

	labeled := []align.LabeledSegment{
		labeledSeg(0, 1, "so", "SPEAKER_0"),
		labeledSeg(1, 2, "um", ""),
		labeledSeg(2, 3, "anyway", "SPEAKER_0"),
		labeledSeg(3, 4, "right", "SPEAKER_1"),
	}

	turns := align.MergeTurns(labeled)
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Speaker != "SPEAKER_0" || turns[0].Text != "so um anyway" {
		t.Errorf("turn 0: got %+v, want SPEAKER_0 saying %q", turns[0], "so um anyway")
	}
	if turns[1].Speaker != "SPEAKER_1" || turns[1].Text != "right" {
		t.Errorf("turn 1: got %+v, want SPEAKER_1 saying %q", turns[1], "right")
	}
}

func TestMergeTurns_LeadingUnknownTurnStands(t *testing.T) {
	t.Parallel()

	labeled := []align.LabeledSegment{
		labeledSeg(0, 1, "hello", ""),
		labeledSeg(1, 2, "everyone", ""),
		labeledSeg(2, 3, "welcome", "SPEAKER_0"),
	}

	turns := align.MergeTurns(labeled)
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Speaker != align.SpeakerUnknown {
		t.Errorf("turn 0 speaker=%q, want SpeakerUnknown (no retroactive relabel)", turns[0].Speaker)
	}
	if turns[0].Text != "hello everyone" {
		t.Errorf("turn 0 text=%q, want %q", turns[0].Text, "hello everyone")
	}
	if turns[1].Speaker != "SPEAKER_0" {
		t.Errorf("turn 1 speaker=%q, want SPEAKER_0", turns[1].Speaker)
	}
}

func TestMergeTurns_AlternatingSpeakersYieldOneTurnEach(t *testing.T) {
	t.Parallel()

	var labeled []align.LabeledSegment
	for i := range 8 {
		speaker := "SPEAKER_0"
		if i%2 == 1 {
			speaker = "SPEAKER_1"
		}
		labeled = append(labeled, labeledSeg(float64(i), float64(i+1), "x", speaker))
	}

	turns := align.MergeTurns(labeled)
	if len(turns) != len(labeled) {
		t.Fatalf("got %d turns, want %d (one per alternating segment)", len(turns), len(labeled))
	}
}

// Feeding each merged turn back as a single synthetic segment must reproduce
// the same turn boundaries: merging is already maximal after one pass.
func TestMergeTurns_CoalescingIsStable(t *testing.T) {
	t.Parallel()

	labeled := []align.LabeledSegment{
		labeledSeg(0, 1, "a", "SPEAKER_0"),
		labeledSeg(1, 2, "b", "SPEAKER_0"),
		labeledSeg(2, 3, "c", "SPEAKER_1"),
		labeledSeg(3.5, 4, "d", ""),
		labeledSeg(4, 5, "e", "SPEAKER_0"),
	}

	once := align.MergeTurns(labeled)

	synthetic := make([]align.LabeledSegment, len(once))
	for i, tn := range once {
		synthetic[i] = align.LabeledSegment{
			Segment: seg(tn.Start, tn.End, tn.Text),
			Speaker: tn.Speaker,
		}
	}
	twice := align.MergeTurns(synthetic)

	if len(twice) != len(once) {
		t.Fatalf("second pass produced %d turns, want %d", len(twice), len(once))
	}
	for i := range once {
		if twice[i] != once[i] {
			t.Errorf("turn %d changed on second pass: got %+v, want %+v", i, twice[i], once[i])
		}
	}
}

func TestMergeTurns_EmptyInput(t *testing.T) {
	t.Parallel()

	if turns := align.MergeTurns(nil); turns != nil {
		t.Errorf("got %v, want nil for empty input", turns)
	}
}
