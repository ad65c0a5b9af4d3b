// Package pipeline orchestrates the full recording-to-transcript flow:
// audio extraction, concurrent transcription and diarization, reconciliation
// of the two timelines, vocabulary correction, speaker identification, and
// the optional archive write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxalign/internal/identify"
	"github.com/MrWong99/voxalign/internal/observe"
	"github.com/MrWong99/voxalign/internal/vocab"
	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/archive"
	"github.com/MrWong99/voxalign/pkg/provider/asr"
	"github.com/MrWong99/voxalign/pkg/provider/diarize"
	"github.com/MrWong99/voxalign/pkg/provider/llm"
)

// AudioExtractor converts source media into a mono WAV file and returns its
// path. Implemented by [media.Extractor].
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, inputPath string) (string, error)
}

// Options configures a [Pipeline]. ASR, Diarizer, and Extractor are required;
// everything else is optional and disables its stage when unset.
type Options struct {
	Extractor AudioExtractor
	ASR       asr.Provider
	Diarizer  diarize.Provider

	// ASRName and DiarizerName label the providers in metrics and logs.
	// They default to the provider's Go type.
	ASRName      string
	DiarizerName string

	// LLM enables speaker identification when Participants is non-empty.
	LLM llm.Provider

	// LLMName labels the LLM provider in metrics and logs.
	LLMName string

	// Archive receives the finished transcript when set.
	Archive archive.Store

	// Vocabulary lists proper nouns for phonetic correction of turn text.
	Vocabulary []string

	// Participants lists real names for diarization label identification.
	Participants []string

	// MinTurnDuration is the diarization noise gate in seconds.
	// Zero means [align.DefaultMinTurnDuration].
	MinTurnDuration float64

	// SmoothingGap is the speaker-continuity gap in seconds.
	// Zero means [align.DefaultSmoothingGap].
	SmoothingGap float64

	// KeepAudio leaves the extracted WAV file on disk after the run.
	KeepAudio bool

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Result is the outcome of one pipeline run.
type Result struct {
	// TranscriptID is the archive identifier, set when an archive store is
	// configured and the write succeeded.
	TranscriptID string

	// Turns is the final speaker-attributed transcript in chronological
	// order, with vocabulary corrections applied and speakers renamed where
	// identification succeeded.
	Turns []align.Turn

	// Language is the detected or configured language, when the ASR backend
	// reports one.
	Language string

	// Duration is the audio duration in seconds, when known.
	Duration float64

	// Corrections is the audit trail of vocabulary corrections.
	Corrections []vocab.Correction

	// Speakers maps diarization labels to identified participant names.
	// Empty when identification was skipped or found nothing.
	Speakers map[align.SpeakerID]string
}

// Pipeline runs recordings through the transcription flow. Safe for
// concurrent use; independent Run calls share the providers.
type Pipeline struct {
	opts       Options
	matcher    *vocab.Matcher
	identifier *identify.Identifier
	metrics    *observe.Metrics
}

// New validates opts and returns a ready Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Extractor == nil {
		return nil, errors.New("pipeline: extractor is required")
	}
	if opts.ASR == nil {
		return nil, errors.New("pipeline: asr provider is required")
	}
	if opts.Diarizer == nil {
		return nil, errors.New("pipeline: diarize provider is required")
	}
	if opts.MinTurnDuration == 0 {
		opts.MinTurnDuration = align.DefaultMinTurnDuration
	}
	if opts.SmoothingGap == 0 {
		opts.SmoothingGap = align.DefaultSmoothingGap
	}

	if opts.ASRName == "" {
		opts.ASRName = fmt.Sprintf("%T", opts.ASR)
	}
	if opts.DiarizerName == "" {
		opts.DiarizerName = fmt.Sprintf("%T", opts.Diarizer)
	}
	if opts.LLMName == "" && opts.LLM != nil {
		opts.LLMName = fmt.Sprintf("%T", opts.LLM)
	}

	p := &Pipeline{opts: opts, metrics: opts.Metrics}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if len(opts.Vocabulary) > 0 {
		p.matcher = vocab.NewMatcher()
	}
	if opts.LLM != nil && len(opts.Participants) > 0 {
		p.identifier = identify.New(opts.LLM)
	}
	return p, nil
}

// Run processes the media file at inputPath and returns the finished
// transcript. Transcription and diarization run concurrently; a failure in
// either aborts the run. Vocabulary correction and speaker identification
// are best-effort stages, and so is the archive write: their failures are
// logged and the transcript is still returned.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.Run")
	defer span.End()
	start := time.Now()
	log := observe.Logger(ctx)

	audioPath, err := p.extract(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	if !p.opts.KeepAudio {
		defer os.Remove(audioPath)
	}

	asrResult, speakerTurns, err := p.recognize(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	turns, err := p.reconcile(ctx, asrResult.Segments, speakerTurns)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Turns:    turns,
		Language: asrResult.Language,
		Duration: asrResult.Duration,
	}
	p.metrics.SegmentsTranscribed.Add(ctx, int64(len(asrResult.Segments)))
	p.metrics.TurnsProduced.Add(ctx, int64(len(turns)))

	p.correct(ctx, result)
	p.identify(ctx, result)
	p.archive(ctx, inputPath, result)

	p.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	log.Info("pipeline finished",
		"input", inputPath,
		"turns", len(result.Turns),
		"language", result.Language,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

func (p *Pipeline) extract(ctx context.Context, inputPath string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.extract")
	defer span.End()
	start := time.Now()

	audioPath, err := p.opts.Extractor.ExtractAudio(ctx, inputPath)
	if err != nil {
		return "", fmt.Errorf("pipeline: extract audio: %w", err)
	}
	p.metrics.ExtractDuration.Record(ctx, time.Since(start).Seconds())
	return audioPath, nil
}

// recognize runs transcription and diarization concurrently over the same
// audio file. Both must succeed.
func (p *Pipeline) recognize(ctx context.Context, audioPath string) (*asr.Result, []align.SpeakerTurn, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.recognize")
	defer span.End()

	var (
		asrResult    *asr.Result
		speakerTurns []align.SpeakerTurn
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		res, err := p.opts.ASR.Transcribe(gctx, audioPath)
		p.metrics.ASRDuration.Record(gctx, time.Since(start).Seconds())
		if err != nil {
			p.metrics.RecordProviderError(gctx, p.opts.ASRName, "asr")
			return fmt.Errorf("pipeline: transcribe: %w", err)
		}
		p.metrics.RecordProviderRequest(gctx, p.opts.ASRName, "asr", "ok")
		asrResult = res
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		turns, err := p.opts.Diarizer.Diarize(gctx, audioPath)
		p.metrics.DiarizeDuration.Record(gctx, time.Since(start).Seconds())
		if err != nil {
			// A diarizer that finds no speech is not fatal; every segment
			// simply stays unattributed.
			if errors.Is(err, diarize.ErrNoSpeechDetected) {
				observe.Logger(gctx).Warn("diarizer detected no speech; speakers will be unknown")
				speakerTurns = nil
				return nil
			}
			p.metrics.RecordProviderError(gctx, p.opts.DiarizerName, "diarize")
			return fmt.Errorf("pipeline: diarize: %w", err)
		}
		p.metrics.RecordProviderRequest(gctx, p.opts.DiarizerName, "diarize", "ok")
		speakerTurns = turns
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return asrResult, speakerTurns, nil
}

// reconcile assigns speakers to segments and merges them into turns.
func (p *Pipeline) reconcile(ctx context.Context, segments []align.Segment, speakerTurns []align.SpeakerTurn) ([]align.Turn, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.align")
	defer span.End()
	start := time.Now()

	filtered := align.FilterShortTurns(speakerTurns, p.opts.MinTurnDuration)
	labeled, err := align.Reconcile(segments, filtered)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reconcile: %w", err)
	}
	labeled = align.Smooth(labeled, p.opts.SmoothingGap)
	turns := align.MergeTurns(labeled)

	p.metrics.AlignDuration.Record(ctx, time.Since(start).Seconds())
	return turns, nil
}

func (p *Pipeline) correct(ctx context.Context, result *Result) {
	if p.matcher == nil || len(result.Turns) == 0 {
		return
	}
	_, span := observe.StartSpan(ctx, "pipeline.vocab")
	defer span.End()

	corrected, corrections := p.matcher.CorrectTurns(result.Turns, p.opts.Vocabulary)
	result.Turns = corrected
	result.Corrections = corrections
	p.metrics.VocabularyCorrections.Add(ctx, int64(len(corrections)))
	for _, c := range corrections {
		observe.Logger(ctx).Debug("vocabulary correction",
			"original", c.Original,
			"corrected", c.Corrected,
			"confidence", c.Confidence,
		)
	}
}

func (p *Pipeline) identify(ctx context.Context, result *Result) {
	if p.identifier == nil || len(result.Turns) == 0 {
		return
	}
	ctx, span := observe.StartSpan(ctx, "pipeline.identify")
	defer span.End()
	start := time.Now()

	mapping, err := p.identifier.Identify(ctx, result.Turns, p.opts.Participants)
	p.metrics.IdentifyDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, p.opts.LLMName, "llm")
		observe.Logger(ctx).Warn("speaker identification failed; labels stay opaque", "err", err)
		return
	}
	if len(mapping) == 0 {
		return
	}
	result.Turns = identify.Apply(result.Turns, mapping)
	result.Speakers = mapping
	p.metrics.SpeakersIdentified.Add(ctx, int64(len(mapping)))
}

func (p *Pipeline) archive(ctx context.Context, inputPath string, result *Result) {
	if p.opts.Archive == nil {
		return
	}
	ctx, span := observe.StartSpan(ctx, "pipeline.archive")
	defer span.End()
	start := time.Now()

	id := uuid.NewString()
	err := p.opts.Archive.SaveTranscript(ctx, archive.Transcript{
		ID:        id,
		Source:    inputPath,
		Language:  result.Language,
		Duration:  result.Duration,
		CreatedAt: time.Now(),
		Turns:     result.Turns,
	})
	p.metrics.ArchiveDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		observe.Logger(ctx).Error("archive write failed; transcript not persisted", "err", err)
		return
	}
	result.TranscriptID = id
}
