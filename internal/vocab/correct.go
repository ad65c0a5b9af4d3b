package vocab

import (
	"strings"

	"github.com/MrWong99/voxalign/pkg/align"
)

// Correction captures a single substitution made by [Matcher.CorrectTurns].
type Correction struct {
	// Original is the text as produced by the recognition backend.
	Original string

	// Corrected is the vocabulary term that replaced it.
	Corrected string

	// Confidence is the similarity score of the match (0.0-1.0).
	Confidence float64
}

// CorrectTurns applies vocabulary correction to the text of every turn and
// returns the corrected turns plus an itemised record of the substitutions.
// The input slice is not mutated.
//
// At each token position, n-gram windows are tried from the longest
// vocabulary term down to a single word, so multi-word terms take precedence
// over partial single-word matches. Surrounding punctuation is preserved.
func (m *Matcher) CorrectTurns(turns []align.Turn, terms []string) ([]align.Turn, []Correction) {
	prepared := PrepareTerms(terms)

	out := make([]align.Turn, len(turns))
	copy(out, turns)
	if prepared.MaxWords() == 0 {
		return out, nil
	}

	var corrections []Correction
	for i := range out {
		text, applied := m.correctText(out[i].Text, prepared)
		out[i].Text = text
		corrections = append(corrections, applied...)
	}
	return out, corrections
}

// correctText runs windowed matching over one piece of text.
func (m *Matcher) correctText(text string, v *Vocabulary) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		// Clamp window size to remaining tokens.
		maxN := v.MaxWords()
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window, prefix, suffix := bareWindow(tokens[i : i+n])
			if window == "" {
				continue
			}
			term, conf, ok := m.Match(window, v)
			if !ok {
				continue
			}

			output = append(output, prefix+term+suffix)
			corrections = append(corrections, Correction{
				Original:   window,
				Corrected:  term,
				Confidence: conf,
			})
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// bareWindow joins the tokens with punctuation stripped from the edges,
// returning the joined core plus the leading and trailing punctuation of the
// window so replacements can keep it.
func bareWindow(tokens []string) (window, prefix, suffix string) {
	cores := make([]string, 0, len(tokens))
	for idx, tok := range tokens {
		p, core, s := splitPunct(tok)
		if core == "" {
			return "", "", ""
		}
		// Punctuation inside the window would make the joined string
		// unmatchable, so only edge punctuation is tolerated.
		if idx == 0 {
			prefix = p
		} else if p != "" {
			return "", "", ""
		}
		if idx == len(tokens)-1 {
			suffix = s
		} else if s != "" {
			return "", "", ""
		}
		cores = append(cores, core)
	}
	return strings.Join(cores, " "), prefix, suffix
}

// splitPunct splits a token into leading punctuation, the letter/digit core
// and trailing punctuation.
func splitPunct(token string) (prefix, core, suffix string) {
	start := 0
	for start < len(token) && !isWordByte(token[start]) {
		start++
	}
	end := len(token)
	for end > start && !isWordByte(token[end-1]) {
		end--
	}
	return token[:start], token[start:end], token[end:]
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b >= 0x80
}
