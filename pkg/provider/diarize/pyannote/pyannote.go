// Package pyannote provides a diarization provider backed by the
// pyannote.audio pipeline, run as a Python subprocess.
//
// The helper script is embedded in the binary and written to a temporary
// file per call, so the only runtime requirements are a Python interpreter
// with pyannote.audio installed and, for gated models, a Hugging Face access
// token.
package pyannote

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/provider/diarize"
)

//go:embed assets/diarize.py
var helperScript []byte

// DefaultModel is the pyannote pipeline loaded when none is configured.
const DefaultModel = "pyannote/speaker-diarization-3.1"

// Ensure Provider implements the diarize.Provider interface.
var _ diarize.Provider = (*Provider)(nil)

// Provider implements diarize.Provider by shelling out to a pyannote.audio
// helper script.
type Provider struct {
	hfToken string
	model   string
	device  string
	python  string
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel overrides the pyannote pipeline identifier.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithDevice pins inference to a torch device ("cpu", "cuda"). The default
// "auto" picks CUDA when available.
func WithDevice(device string) Option {
	return func(p *Provider) { p.device = device }
}

// WithPython overrides the Python interpreter used to run the helper.
// Defaults to "python3" resolved via PATH.
func WithPython(interpreter string) Option {
	return func(p *Provider) { p.python = interpreter }
}

// New constructs a pyannote diarization Provider. hfToken is the Hugging
// Face access token used to download gated pipeline weights; it may be empty
// when the model is already cached locally.
func New(hfToken string, opts ...Option) *Provider {
	p := &Provider{
		hfToken: hfToken,
		model:   DefaultModel,
		device:  "auto",
		python:  "python3",
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// helperTurn mirrors one element of the helper script's JSON output.
type helperTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Diarize implements diarize.Provider.
func (p *Provider) Diarize(ctx context.Context, audioPath string) ([]align.SpeakerTurn, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("pyannote: audio %q: %w", audioPath, errors.Join(diarize.ErrAudioUnreadable, err))
	}

	script, err := os.CreateTemp("", "voxalign_diarize_*.py")
	if err != nil {
		return nil, fmt.Errorf("pyannote: create helper script: %w", err)
	}
	scriptPath := script.Name()
	defer os.Remove(scriptPath)
	if _, err := script.Write(helperScript); err != nil {
		script.Close()
		return nil, fmt.Errorf("pyannote: write helper script: %w", err)
	}
	if err := script.Close(); err != nil {
		return nil, fmt.Errorf("pyannote: write helper script: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.python, scriptPath,
		"--audio", audioPath,
		"--model", p.model,
		"--device", p.device,
	)
	// The token goes through the environment so it never shows up in the
	// process list.
	cmd.Env = append(os.Environ(), "HF_TOKEN="+p.hfToken)

	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			stderr := strings.TrimSpace(string(ee.Stderr))
			return nil, fmt.Errorf("pyannote: helper failed: %s: %w", stderr, diarize.ErrModelUnavailable)
		}
		return nil, fmt.Errorf("pyannote: run helper: %w", errors.Join(diarize.ErrModelUnavailable, err))
	}

	var parsed []helperTurn
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("pyannote: parse helper output: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("pyannote: %q: %w", audioPath, diarize.ErrNoSpeechDetected)
	}

	turns := make([]align.SpeakerTurn, 0, len(parsed))
	for _, t := range parsed {
		turns = append(turns, align.SpeakerTurn{
			Interval: align.Interval{Start: t.Start, End: t.End},
			Speaker:  align.SpeakerID(t.Speaker),
		})
	}
	// The helper sorts already; keep the guarantee even for patched scripts.
	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].Start != turns[j].Start {
			return turns[i].Start < turns[j].Start
		}
		return turns[i].End < turns[j].End
	})
	return turns, nil
}
