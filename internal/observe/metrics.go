// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, and HTTP middleware that ties them
// together.
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

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/codevox-dev/codevox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// DenoiseDuration tracks noise-suppression latency per speech span.
	DenoiseDuration metric.Float64Histogram

	// TranscribeDuration tracks acoustic transcription latency.
	TranscribeDuration metric.Float64Histogram

	// CorrectDuration tracks LLM correction latency.
	CorrectDuration metric.Float64Histogram

	// UtteranceDuration tracks end-to-end latency from span close to
	// delivered result.
	UtteranceDuration metric.Float64Histogram

	// --- Counters ---

	// Spans counts speech spans emitted by the gate. Use with attribute:
	//   attribute.String("outcome", "delivered" | "suppressed" | "failed")
	Spans metric.Int64Counter

	// Suppressed counts hypotheses dropped by the quality gate. Use with
	// attribute: attribute.String("reason", ...)
	Suppressed metric.Int64Counter

	// CorrectionFallbacks counts utterances delivered with the raw
	// transcript because correction failed or was rejected.
	CorrectionFallbacks metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of speech spans waiting for a decode slot.
	QueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.DenoiseDuration, err = m.Float64Histogram("codevox.denoise.duration",
		metric.WithDescription("Latency of noise suppression per speech span."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("codevox.transcribe.duration",
		metric.WithDescription("Latency of acoustic transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CorrectDuration, err = m.Float64Histogram("codevox.correct.duration",
		metric.WithDescription("Latency of LLM transcript correction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("codevox.utterance.duration",
		metric.WithDescription("End-to-end latency from span close to delivered result."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Spans, err = m.Int64Counter("codevox.spans",
		metric.WithDescription("Total speech spans by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Suppressed, err = m.Int64Counter("codevox.suppressed",
		metric.WithDescription("Total hypotheses dropped by the quality gate, by reason."),
	); err != nil {
		return nil, err
	}
	if met.CorrectionFallbacks, err = m.Int64Counter("codevox.correction.fallbacks",
		metric.WithDescription("Total utterances delivered with the raw transcript."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("codevox.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("codevox.queue.depth",
		metric.WithDescription("Speech spans waiting for a decode slot."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("codevox.http.request.duration",
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

// RecordSpan records a span outcome counter increment.
func (m *Metrics) RecordSpan(ctx context.Context, outcome string) {
	m.Spans.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordSuppressed records a quality-gate drop with its reason.
func (m *Metrics) RecordSuppressed(ctx context.Context, reason string) {
	m.Suppressed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordCorrectionFallback records delivery of a raw, uncorrected transcript.
func (m *Metrics) RecordCorrectionFallback(ctx context.Context, reason string) {
	m.CorrectionFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
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
