// Package energy provides a dependency-free fallback diarizer based on
// frame energy.
//
// It detects speech regions by short-time RMS thresholding and alternates
// between two speaker labels whenever the pause between regions exceeds a
// configurable gap. This is a crude stand-in for a real diarization model
// and is only reasonable for clean two-party recordings; prefer the pyannote
// or Deepgram backends whenever they are available.
package energy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/audio"
	"github.com/MrWong99/voxalign/pkg/provider/diarize"
)

// Defaults for the detector. RMS is on the normalised [-1, 1] sample scale.
const (
	DefaultSpeechThreshold = 0.015
	DefaultMergeGap        = 0.4
	DefaultSwitchGap       = 1.5

	frameDuration = 0.02 // 20 ms analysis frames
)

// Ensure Provider implements the diarize.Provider interface.
var _ diarize.Provider = (*Provider)(nil)

// Provider implements diarize.Provider with an RMS speech detector.
type Provider struct {
	speechThreshold float64
	mergeGap        float64
	switchGap       float64
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithSpeechThreshold sets the RMS level above which a frame counts as
// speech.
func WithSpeechThreshold(rms float64) Option {
	return func(p *Provider) { p.speechThreshold = rms }
}

// WithMergeGap sets the maximum pause, in seconds, across which two speech
// regions are joined into one turn.
func WithMergeGap(seconds float64) Option {
	return func(p *Provider) { p.mergeGap = seconds }
}

// WithSwitchGap sets the minimum pause, in seconds, that makes the detector
// alternate to the other speaker label.
func WithSwitchGap(seconds float64) Option {
	return func(p *Provider) { p.switchGap = seconds }
}

// New constructs an energy Provider with the default thresholds.
func New(opts ...Option) *Provider {
	p := &Provider{
		speechThreshold: DefaultSpeechThreshold,
		mergeGap:        DefaultMergeGap,
		switchGap:       DefaultSwitchGap,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Diarize implements diarize.Provider.
func (p *Provider) Diarize(ctx context.Context, audioPath string) ([]align.SpeakerTurn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("energy: context already cancelled: %w", err)
	}

	clip, err := audio.ReadWAVFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("energy: decode %q: %w", audioPath, errors.Join(diarize.ErrAudioUnreadable, err))
	}

	regions := speechRegions(clip, p.speechThreshold, p.mergeGap)
	if len(regions) == 0 {
		return nil, fmt.Errorf("energy: %q: %w", audioPath, diarize.ErrNoSpeechDetected)
	}

	// Alternate between two labels on long pauses. With no spectral
	// features there is no way to tell speakers apart beyond this.
	turns := make([]align.SpeakerTurn, 0, len(regions))
	speaker := 0
	for i, r := range regions {
		if i > 0 && r.Start-regions[i-1].End > p.switchGap {
			speaker = 1 - speaker
		}
		turns = append(turns, align.SpeakerTurn{
			Interval: r,
			Speaker:  align.SpeakerID(fmt.Sprintf("SPEAKER_%d", speaker)),
		})
	}
	return turns, nil
}

// speechRegions scans the clip in fixed frames, keeps those whose RMS
// exceeds threshold, and merges regions separated by less than mergeGap
// seconds.
func speechRegions(clip audio.Clip, threshold, mergeGap float64) []align.Interval {
	if clip.Rate <= 0 || len(clip.Samples) == 0 {
		return nil
	}
	frameLen := int(frameDuration * float64(clip.Rate))
	if frameLen < 1 {
		frameLen = 1
	}

	var regions []align.Interval
	for start := 0; start < len(clip.Samples); start += frameLen {
		end := min(start+frameLen, len(clip.Samples))
		if rms(clip.Samples[start:end]) < threshold {
			continue
		}

		from := float64(start) / float64(clip.Rate)
		to := float64(end) / float64(clip.Rate)
		if n := len(regions); n > 0 && from-regions[n-1].End <= mergeGap {
			regions[n-1].End = to
			continue
		}
		regions = append(regions, align.Interval{Start: from, End: to})
	}
	return regions
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
