package align

import (
	"fmt"
	"strings"
)

// DefaultUnknownLabel is the placeholder rendered for turns whose speaker
// never resolved.
const DefaultUnknownLabel = "UNKNOWN"

// FormatterOption is a functional option for configuring a [Formatter].
type FormatterOption func(*Formatter)

// WithUnknownLabel overrides the placeholder rendered for
// [SpeakerUnknown] turns. Default: [DefaultUnknownLabel].
func WithUnknownLabel(label string) FormatterOption {
	return func(f *Formatter) {
		f.unknownLabel = label
	}
}

// WithoutTimestamps disables the leading timestamp range on every line,
// producing the bare "SPEAKER: text" form.
func WithoutTimestamps() FormatterOption {
	return func(f *Formatter) {
		f.timestamps = false
	}
}

// Formatter renders an ordered turn sequence as human-readable transcript
// lines. It performs no reconciliation of its own; it is the sole consumer
// of the [Turn] sequence and fixes the output contract of the pipeline.
//
// A Formatter is read-only after construction and safe for concurrent use.
type Formatter struct {
	unknownLabel string
	timestamps   bool
}

// NewFormatter returns a [Formatter] configured with the supplied options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		unknownLabel: DefaultUnknownLabel,
		timestamps:   true,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Lines renders one display line per turn, in turn order:
//
//	[MM:SS - MM:SS] SPEAKER_00: hello world
//
// The timestamp style is consistent across all lines: MM:SS normally,
// HH:MM:SS as soon as any turn reaches the one-hour mark. The result is
// non-nil for non-empty input.
func (f *Formatter) Lines(turns []Turn) []string {
	if len(turns) == 0 {
		return nil
	}
	hours := false
	for _, t := range turns {
		if t.End >= 3600 {
			hours = true
			break
		}
	}

	lines := make([]string, len(turns))
	for i, t := range turns {
		speaker := string(t.Speaker)
		if t.Speaker == SpeakerUnknown {
			speaker = f.unknownLabel
		}
		if f.timestamps {
			lines[i] = fmt.Sprintf("[%s - %s] %s: %s",
				clock(t.Start, hours), clock(t.End, hours), speaker, t.Text)
		} else {
			lines[i] = fmt.Sprintf("%s: %s", speaker, t.Text)
		}
	}
	return lines
}

// Render returns the newline-joined transcript with a trailing newline, ready
// to be written to a file. Empty input renders as the empty string.
func (f *Formatter) Render(turns []Turn) string {
	lines := f.Lines(turns)
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// clock formats a second offset as zero-padded MM:SS, or HH:MM:SS when hours
// is set. Fractional seconds are truncated; negative inputs clamp to zero.
func clock(seconds float64, hours bool) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := total % 3600 / 60
	s := total % 60
	if hours {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m+h*60, s)
}
