// Package identify maps opaque diarization labels to participant names.
//
// Diarization backends emit anonymous labels such as SPEAKER_0; when the
// caller knows who attended the recording, the [Identifier] sends a
// transcript excerpt to an [llm.Provider] along with the participant list and
// asks which label belongs to which person. The model is instructed (via a
// conservative system prompt) to use self-introductions and direct address
// only, and to return a structured JSON response.
//
// Every suggestion is verified before use: unknown labels, names outside the
// participant list, duplicate assignments and low-confidence guesses are all
// discarded. When the LLM response cannot be parsed, Identify returns an
// empty mapping rather than surfacing an error, so the pipeline continues
// with the anonymous labels.
package identify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/provider/llm"
)

const (
	defaultTemperature   = 0.1
	defaultMinConfidence = 0.5
	defaultExcerptTurns  = 40
	maxTurnChars         = 240
)

// systemPromptTemplate is the base system prompt. The participant list is
// appended at call time.
const systemPromptTemplate = `You are a transcript analysis assistant.

Your task: decide which diarization label (SPEAKER_0, SPEAKER_1, ...) belongs to which participant, based only on the transcript excerpt.

Rules:
- Use ONLY evidence from the excerpt: self-introductions ("hi, this is Ana"), direct address ("thanks, Ana"), and role references.
- Assign ONLY names from the participant list below, spelled exactly as listed.
- Each participant may be assigned to at most one label.
- Be conservative — when the evidence is weak, omit the label entirely instead of guessing.

Participants:
%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "speakers": [
    {"label": "<diarization label>", "name": "<participant name>", "confidence": <0.0-1.0>}
  ]
}

If no label can be attributed with confidence, return an empty speakers array.`

// llmResponse is the expected JSON structure returned by the LLM.
type llmResponse struct {
	Speakers []struct {
		Label      string  `json:"label"`
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"speakers"`
}

// Option is a functional option for configuring an [Identifier].
type Option func(*Identifier)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic attributions. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(i *Identifier) {
		i.temperature = temp
	}
}

// WithMinConfidence sets the confidence below which a suggested attribution
// is discarded. Default: 0.5.
func WithMinConfidence(min float64) Option {
	return func(i *Identifier) {
		i.minConfidence = min
	}
}

// WithExcerptTurns caps how many turns of the transcript are included in the
// prompt. Default: 40.
func WithExcerptTurns(n int) Option {
	return func(i *Identifier) {
		i.excerptTurns = n
	}
}

// Identifier attributes diarization labels to participant names using an
// [llm.Provider]. It is safe for concurrent use.
type Identifier struct {
	llm           llm.Provider
	temperature   float64
	minConfidence float64
	excerptTurns  int
}

// New returns a new [Identifier] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Identifier {
	i := &Identifier{
		llm:           provider,
		temperature:   defaultTemperature,
		minConfidence: defaultMinConfidence,
		excerptTurns:  defaultExcerptTurns,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Identify asks the LLM which diarization label belongs to which participant
// and returns the verified mapping. Labels without a confident attribution
// are absent from the map.
//
// An unparseable LLM response yields an empty map and a nil error (graceful
// degradation). Context cancellation and network errors are returned as
// non-nil errors.
func (i *Identifier) Identify(ctx context.Context, turns []align.Turn, participants []string) (map[align.SpeakerID]string, error) {
	if len(turns) == 0 || len(participants) == 0 {
		return nil, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(participants),
		Temperature:  i.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: buildExcerpt(turns, i.excerptTurns)},
		},
	}

	resp, err := i.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("identify: complete: %w", err)
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(stripMarkdown(resp.Content)), &parsed); err != nil {
		// Unparseable response: keep the anonymous labels, no error.
		return map[align.SpeakerID]string{}, nil
	}

	return i.verify(parsed, turns, participants), nil
}

// Apply renames the speakers of turns according to mapping and returns a
// fresh slice. Labels absent from the map are kept as-is.
func Apply(turns []align.Turn, mapping map[align.SpeakerID]string) []align.Turn {
	out := make([]align.Turn, len(turns))
	copy(out, turns)
	if len(mapping) == 0 {
		return out
	}
	for idx := range out {
		if name, ok := mapping[out[idx].Speaker]; ok {
			out[idx].Speaker = align.SpeakerID(name)
		}
	}
	return out
}

// verify drops suggestions that reference unknown labels, names outside the
// participant list, duplicates, or scores below the confidence floor.
func (i *Identifier) verify(parsed llmResponse, turns []align.Turn, participants []string) map[align.SpeakerID]string {
	known := make(map[align.SpeakerID]struct{}, 4)
	for _, t := range turns {
		known[t.Speaker] = struct{}{}
	}

	// Canonical spelling lookup, case-insensitive.
	canonical := make(map[string]string, len(participants))
	for _, p := range participants {
		canonical[strings.ToLower(strings.TrimSpace(p))] = strings.TrimSpace(p)
	}

	mapping := make(map[align.SpeakerID]string, len(parsed.Speakers))
	used := make(map[string]struct{}, len(parsed.Speakers))
	for _, s := range parsed.Speakers {
		if s.Confidence < i.minConfidence {
			continue
		}
		label := align.SpeakerID(strings.TrimSpace(s.Label))
		if _, ok := known[label]; !ok {
			continue
		}
		name, ok := canonical[strings.ToLower(strings.TrimSpace(s.Name))]
		if !ok {
			continue
		}
		if _, taken := used[name]; taken {
			continue
		}
		if _, assigned := mapping[label]; assigned {
			continue
		}
		mapping[label] = name
		used[name] = struct{}{}
	}
	return mapping
}

// buildSystemPrompt formats the system prompt template with the participant
// list.
func buildSystemPrompt(participants []string) string {
	var sb strings.Builder
	for _, p := range participants {
		sb.WriteString("- ")
		sb.WriteString(p)
		sb.WriteByte('\n')
	}
	return fmt.Sprintf(systemPromptTemplate, sb.String())
}

// buildExcerpt renders up to maxTurns turns as "LABEL: text" lines, clipping
// very long turns so the prompt stays small.
func buildExcerpt(turns []align.Turn, maxTurns int) string {
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[:maxTurns]
	}
	var sb strings.Builder
	for _, t := range turns {
		text := t.Text
		if len(text) > maxTurnChars {
			text = text[:maxTurnChars] + "..."
		}
		fmt.Fprintf(&sb, "%s: %s\n", t.Speaker, text)
	}
	return sb.String()
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
