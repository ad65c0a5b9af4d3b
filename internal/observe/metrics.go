// Package observe provides application-wide observability primitives for
// voxalign: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware for the telemetry endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxalign metrics.
const meterName = "github.com/MrWong99/voxalign"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ExtractDuration tracks ffmpeg audio extraction latency.
	ExtractDuration metric.Float64Histogram

	// ASRDuration tracks batch transcription latency.
	ASRDuration metric.Float64Histogram

	// DiarizeDuration tracks speaker diarization latency.
	DiarizeDuration metric.Float64Histogram

	// AlignDuration tracks the reconcile-and-merge step.
	AlignDuration metric.Float64Histogram

	// IdentifyDuration tracks LLM speaker identification latency.
	IdentifyDuration metric.Float64Histogram

	// ArchiveDuration tracks transcript archive writes.
	ArchiveDuration metric.Float64Histogram

	// PipelineDuration tracks whole-pipeline wall time per recording.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// SegmentsTranscribed counts ASR segments produced.
	SegmentsTranscribed metric.Int64Counter

	// TurnsProduced counts merged speaker turns in final transcripts.
	TurnsProduced metric.Int64Counter

	// VocabularyCorrections counts phonetic vocabulary corrections applied.
	VocabularyCorrections metric.Int64Counter

	// SpeakersIdentified counts diarization labels mapped to real names.
	SpeakersIdentified metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time on the
	// telemetry endpoint. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// stageBuckets defines histogram bucket boundaries (in seconds) sized for
// batch stages: transcribing an hour of audio legitimately takes minutes.
var stageBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ExtractDuration, err = m.Float64Histogram("voxalign.extract.duration",
		metric.WithDescription("Latency of audio extraction from source media."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ASRDuration, err = m.Float64Histogram("voxalign.asr.duration",
		metric.WithDescription("Latency of batch speech recognition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiarizeDuration, err = m.Float64Histogram("voxalign.diarize.duration",
		metric.WithDescription("Latency of speaker diarization."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AlignDuration, err = m.Float64Histogram("voxalign.align.duration",
		metric.WithDescription("Latency of segment-turn reconciliation and merging."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IdentifyDuration, err = m.Float64Histogram("voxalign.identify.duration",
		metric.WithDescription("Latency of LLM speaker identification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ArchiveDuration, err = m.Float64Histogram("voxalign.archive.duration",
		metric.WithDescription("Latency of transcript archive writes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("voxalign.pipeline.duration",
		metric.WithDescription("End-to-end pipeline wall time per recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("voxalign.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxalign.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsTranscribed, err = m.Int64Counter("voxalign.asr.segments",
		metric.WithDescription("Total ASR segments produced."),
	); err != nil {
		return nil, err
	}
	if met.TurnsProduced, err = m.Int64Counter("voxalign.align.turns",
		metric.WithDescription("Total merged speaker turns in final transcripts."),
	); err != nil {
		return nil, err
	}
	if met.VocabularyCorrections, err = m.Int64Counter("voxalign.vocab.corrections",
		metric.WithDescription("Total phonetic vocabulary corrections applied."),
	); err != nil {
		return nil, err
	}
	if met.SpeakersIdentified, err = m.Int64Counter("voxalign.identify.speakers",
		metric.WithDescription("Total diarization labels mapped to participant names."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxalign.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
