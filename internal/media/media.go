// Package media prepares recordings for the transcription pipeline.
//
// Recognition and diarization backends consume mono 16 kHz WAV; the
// [Extractor] shells out to ffmpeg to pull that audio track out of whatever
// container the recording arrived in (mp4, mkv, webm, mp3, ...).
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultSampleRate is the output sample rate in Hz.
const DefaultSampleRate = 16000

// ErrFFmpegNotFound indicates the ffmpeg binary is not installed or not on
// PATH.
var ErrFFmpegNotFound = errors.New("media: ffmpeg not found")

// ErrExtractFailed indicates ffmpeg ran but could not produce the audio
// track, usually because the input is corrupt or has no audio stream.
var ErrExtractFailed = errors.New("media: audio extraction failed")

// Option is a functional option for configuring an Extractor.
type Option func(*Extractor)

// WithFFmpegPath overrides the ffmpeg binary. Defaults to "ffmpeg" resolved
// via PATH.
func WithFFmpegPath(path string) Option {
	return func(e *Extractor) { e.ffmpeg = path }
}

// WithSampleRate sets the output sample rate in Hz. Default: 16000.
func WithSampleRate(rate int) Option {
	return func(e *Extractor) { e.sampleRate = rate }
}

// WithWorkDir sets the directory extracted audio files are written to.
// Defaults to the system temp directory.
func WithWorkDir(dir string) Option {
	return func(e *Extractor) { e.workDir = dir }
}

// Extractor converts arbitrary media files to mono WAV via ffmpeg. It is
// safe for concurrent use.
type Extractor struct {
	ffmpeg     string
	sampleRate int
	workDir    string
}

// NewExtractor constructs an Extractor with the supplied options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		ffmpeg:     "ffmpeg",
		sampleRate: DefaultSampleRate,
		workDir:    os.TempDir(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ExtractAudio transcodes the audio track of inputPath to a mono WAV file in
// the work directory and returns its path. The caller owns the file and
// should remove it when done.
func (e *Extractor) ExtractAudio(ctx context.Context, inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("media: input %q: %w", inputPath, err)
	}
	if _, err := exec.LookPath(e.ffmpeg); err != nil {
		return "", fmt.Errorf("media: %q: %w", e.ffmpeg, errors.Join(ErrFFmpegNotFound, err))
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outPath := filepath.Join(e.workDir, fmt.Sprintf("%s_%d_16k.wav", base, time.Now().UnixNano()))

	// -vn drops any video stream; -ac 1 -ar N normalises for the backends.
	cmd := exec.CommandContext(ctx, e.ffmpeg,
		"-y", "-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(e.sampleRate),
		"-f", "wav",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		detail := lastLine(stderr.String())
		return "", fmt.Errorf("media: ffmpeg %q: %s: %w", inputPath, detail, errors.Join(ErrExtractFailed, err))
	}

	slog.Debug("extracted audio track",
		"input", inputPath,
		"output", outPath,
		"sampleRate", e.sampleRate,
		"took", time.Since(start),
	)
	return outPath, nil
}

// lastLine returns the final non-empty line of s, which for ffmpeg is almost
// always the actual error message.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return "no output"
}
