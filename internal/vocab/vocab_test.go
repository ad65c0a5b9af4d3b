package vocab_test

import (
	"testing"

	"github.com/MrWong99/voxalign/internal/vocab"
	"github.com/MrWong99/voxalign/pkg/align"
)

func TestMatcher_SingleWordMatch(t *testing.T) {
	t.Parallel()

	m := vocab.NewMatcher()

	// "vesper teen" is a two-word n-gram that should phonetically match
	// "Vespertine": Double Metaphone codes of both share the leading
	// phoneme cluster.
	terms := vocab.PrepareTerms([]string{"Vespertine", "Kubernetes", "Elena Popescu"})

	corrected, conf, matched := m.Match("vesper teen", terms)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "vesper teen")
	}
	if corrected != "Vespertine" {
		t.Errorf("Match(%q): corrected=%q, want %q", "vesper teen", corrected, "Vespertine")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "vesper teen", conf)
	}
}

func TestMatcher_MultiWordTermMatch(t *testing.T) {
	t.Parallel()

	m := vocab.NewMatcher()
	terms := vocab.PrepareTerms([]string{"Elena Popescu", "Vespertine"})

	corrected, conf, matched := m.Match("elena popesku", terms)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "elena popesku")
	}
	if corrected != "Elena Popescu" {
		t.Errorf("Match(%q): corrected=%q, want %q", "elena popesku", corrected, "Elena Popescu")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "elena popesku", conf)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := vocab.NewMatcher()
	terms := vocab.PrepareTerms([]string{"Vespertine", "Kubernetes"})

	corrected, conf, matched := m.Match("hello", terms)
	if matched {
		t.Fatalf("Match(%q): matched=true, want false", "hello")
	}
	if corrected != "hello" {
		t.Errorf("Match(%q): corrected=%q, want original word back", "hello", corrected)
	}
	if conf != 0 {
		t.Errorf("Match(%q): confidence=%f, want 0", "hello", conf)
	}
}

func TestMatcher_CaseInsensitivity(t *testing.T) {
	t.Parallel()

	m := vocab.NewMatcher()
	terms := vocab.PrepareTerms([]string{"Vespertine"})

	corrected, _, matched := m.Match("VESPERTINE", terms)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "VESPERTINE")
	}
	if corrected != "Vespertine" {
		t.Errorf("Match(%q): corrected=%q, want term casing preserved", "VESPERTINE", corrected)
	}
}

func TestMatcher_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	m := vocab.NewMatcher()
	if _, _, matched := m.Match("anything", vocab.PrepareTerms(nil)); matched {
		t.Error("Match with empty vocabulary should never match")
	}
	if _, _, matched := m.Match("anything", nil); matched {
		t.Error("Match with nil vocabulary should never match")
	}
}

func TestCorrectTurns_ReplacesTermAndKeepsPunctuation(t *testing.T) {
	t.Parallel()

	m := vocab.NewMatcher()
	turns := []align.Turn{
		{Speaker: "SPEAKER_0", Start: 0, End: 5, Text: "We shipped vesperteen, finally."},
		{Speaker: "SPEAKER_1", Start: 5, End: 9, Text: "Great news about the release."},
	}

	corrected, corrections := m.CorrectTurns(turns, []string{"Vespertine"})

	if got := corrected[0].Text; got != "We shipped Vespertine, finally." {
		t.Errorf("turn 0 text=%q, want punctuation preserved around the term", got)
	}
	if corrected[1].Text != turns[1].Text {
		t.Errorf("turn 1 text changed unexpectedly: %q", corrected[1].Text)
	}
	if len(corrections) != 1 {
		t.Fatalf("got %d corrections, want 1: %+v", len(corrections), corrections)
	}
	if corrections[0].Original != "vesperteen" || corrections[0].Corrected != "Vespertine" {
		t.Errorf("correction=%+v, want vesperteen -> Vespertine", corrections[0])
	}
}

func TestCorrectTurns_MultiWordWindow(t *testing.T) {
	t.Parallel()

	m := vocab.NewMatcher()
	turns := []align.Turn{
		{Speaker: "SPEAKER_0", Start: 0, End: 4, Text: "ask elena popesku about the rollout"},
	}

	corrected, corrections := m.CorrectTurns(turns, []string{"Elena Popescu"})

	if got := corrected[0].Text; got != "ask Elena Popescu about the rollout" {
		t.Errorf("text=%q, want multi-word term substituted", got)
	}
	if len(corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrections))
	}
}

func TestCorrectTurns_InputNotMutated(t *testing.T) {
	t.Parallel()

	m := vocab.NewMatcher()
	turns := []align.Turn{
		{Speaker: "SPEAKER_0", Start: 0, End: 2, Text: "vesperteen"},
	}

	_, _ = m.CorrectTurns(turns, []string{"Vespertine"})

	if turns[0].Text != "vesperteen" {
		t.Errorf("input turn mutated: %q", turns[0].Text)
	}
}

func TestCorrectTurns_NoTerms(t *testing.T) {
	t.Parallel()

	m := vocab.NewMatcher()
	turns := []align.Turn{
		{Speaker: "SPEAKER_0", Start: 0, End: 2, Text: "nothing to do"},
	}

	corrected, corrections := m.CorrectTurns(turns, nil)
	if corrected[0].Text != "nothing to do" {
		t.Errorf("text=%q, want unchanged", corrected[0].Text)
	}
	if corrections != nil {
		t.Errorf("corrections=%v, want nil", corrections)
	}
}
