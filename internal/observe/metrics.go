// Package observe provides the observability primitives of parley:
// OpenTelemetry metrics, tracing, trace-aware logging and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed in
// Prometheus format through the exporter bridge set up by [InitProvider].
// [DefaultMetrics] uses the global meter provider; tests should use
// [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all parley metrics.
const meterName = "github.com/MrWong99/parley"

// Pipeline stage names used with [Metrics.RecordStage] and as span names.
const (
	StageParse    = "parse"
	StageCompact  = "compact"
	StageWrite    = "write"
	StageRead     = "read"
	StageGraph    = "graph"
	StageAnalyze  = "analyze"
	StagePersist  = "persist"
	StageClassify = "classify"
)

// Transcript outcomes used with [Metrics.RecordTranscript].
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// StageDuration tracks the latency of each pipeline stage. Attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// ClassifierDuration tracks a single question classification. Attribute:
	//   attribute.String("classifier", ...)
	ClassifierDuration metric.Float64Histogram

	UtterancesParsed  metric.Int64Counter
	ChunksProduced    metric.Int64Counter
	QuestionsDetected metric.Int64Counter

	// GraphEdges counts created edges. Attribute: attribute.String("kind", ...)
	GraphEdges metric.Int64Counter

	// ParseErrors counts rejected caption files. Attribute:
	//   attribute.String("state", ...)
	ParseErrors metric.Int64Counter

	// ClassifierCalls counts classification requests. Attributes:
	//   attribute.String("classifier", ...), attribute.String("status", ...)
	ClassifierCalls metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	//   attribute.String("breaker", ...), attribute.String("to", ...)
	BreakerTransitions metric.Int64Counter

	// TranscriptsProcessed counts pipeline runs. Attribute:
	//   attribute.String("status", ...)
	TranscriptsProcessed metric.Int64Counter

	// ActiveTranscripts is the number of transcripts in the pipeline.
	ActiveTranscripts metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// stageBuckets covers in-process passes (sub-millisecond) up to LLM-backed
// graph builds over long meetings.
var stageBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60,
}

// classifierBuckets covers the heuristic (microseconds) and remote LLM calls.
var classifierBuckets = []float64{
	0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.StageDuration, err = m.Float64Histogram("parley.stage.duration",
		metric.WithDescription("Latency of a transcript pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifierDuration, err = m.Float64Histogram("parley.classifier.duration",
		metric.WithDescription("Latency of a single question classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(classifierBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.UtterancesParsed, err = m.Int64Counter("parley.utterances.parsed",
		metric.WithDescription("Total caption utterances parsed."),
	); err != nil {
		return nil, err
	}
	if met.ChunksProduced, err = m.Int64Counter("parley.chunks.produced",
		metric.WithDescription("Total speaker chunks produced by compaction."),
	); err != nil {
		return nil, err
	}
	if met.QuestionsDetected, err = m.Int64Counter("parley.questions.detected",
		metric.WithDescription("Total turns in which a question was detected."),
	); err != nil {
		return nil, err
	}
	if met.GraphEdges, err = m.Int64Counter("parley.graph.edges",
		metric.WithDescription("Total conversation graph edges by kind."),
	); err != nil {
		return nil, err
	}
	if met.ParseErrors, err = m.Int64Counter("parley.parse.errors",
		metric.WithDescription("Total caption files rejected by the parser, by parser state."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierCalls, err = m.Int64Counter("parley.classifier.calls",
		metric.WithDescription("Total question classifications by classifier and status."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("parley.breaker.transitions",
		metric.WithDescription("Total circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptsProcessed, err = m.Int64Counter("parley.transcripts.processed",
		metric.WithDescription("Total transcripts run through the pipeline by outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveTranscripts, err = m.Int64UpDownCounter("parley.active_transcripts",
		metric.WithDescription("Number of transcripts currently in the pipeline."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("parley.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordClassifierCall records one classification with its outcome
// ("ok" or "error") and latency.
func (m *Metrics) RecordClassifierCall(ctx context.Context, classifier, status string, d time.Duration) {
	m.ClassifierCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("classifier", classifier),
			attribute.String("status", status),
		),
	)
	m.ClassifierDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("classifier", classifier)),
	)
}

// RecordEdges adds n edges of the given kind.
func (m *Metrics) RecordEdges(ctx context.Context, kind string, n int) {
	if n <= 0 {
		return
	}
	m.GraphEdges.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordParseError records a rejected caption file.
func (m *Metrics) RecordParseError(ctx context.Context, state string) {
	m.ParseErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("state", state)),
	)
}

// RecordBreakerTransition records a circuit breaker entering state to.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("to", to),
		),
	)
}

// RecordTranscript records a finished pipeline run.
func (m *Metrics) RecordTranscript(ctx context.Context, status string) {
	m.TranscriptsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
