// Package observe provides application-wide observability primitives for
// voxqueue: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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
	"go.opentelemetry.io/otel/trace"
)

// meterName is the instrumentation scope name used for all voxqueue metrics.
const meterName = "github.com/MrWong99/voxqueue"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Histograms ---

	// AtomDuration tracks how long an atom held its audio device, from
	// dispatch to completion. Use with attribute:
	//   attribute.String("kind", "play"|"record"|"dtmf")
	AtomDuration metric.Float64Histogram

	// HTTPRequestDuration tracks control-server request processing time.
	// Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// MoleculesEnqueued counts accepted commands. Use with attributes:
	//   attribute.String("priority", ...), attribute.String("mode", ...)
	MoleculesEnqueued metric.Int64Counter

	// MoleculesFinished counts molecules leaving their lane. Use with
	// attribute: attribute.String("reason", ...)
	MoleculesFinished metric.Int64Counter

	// Preemptions counts preemption events. Use with attribute:
	//   attribute.String("policy", ...)
	Preemptions metric.Int64Counter

	// ParseErrors counts rejected commands. Use with attribute:
	//   attribute.String("kind", ...)
	ParseErrors metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of queued molecules across all lanes.
	QueueDepth metric.Int64UpDownCounter

	// ActiveSessions tracks the number of live call sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// atomBuckets defines histogram bucket boundaries (in seconds) sized for
// announcement playbacks and recordings.
var atomBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AtomDuration, err = m.Float64Histogram("voxqueue.atom.duration",
		metric.WithDescription("Time an atom held its audio device, by kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(atomBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxqueue.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MoleculesEnqueued, err = m.Int64Counter("voxqueue.molecules.enqueued",
		metric.WithDescription("Total accepted commands by priority and mode."),
	); err != nil {
		return nil, err
	}
	if met.MoleculesFinished, err = m.Int64Counter("voxqueue.molecules.finished",
		metric.WithDescription("Total molecules removed from their lane by reason."),
	); err != nil {
		return nil, err
	}
	if met.Preemptions, err = m.Int64Counter("voxqueue.preemptions",
		metric.WithDescription("Total preemption events by interrupt policy of the victim."),
	); err != nil {
		return nil, err
	}
	if met.ParseErrors, err = m.Int64Counter("voxqueue.parse.errors",
		metric.WithDescription("Total rejected commands by error kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("voxqueue.queue.depth",
		metric.WithDescription("Number of queued molecules across all priority lanes."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxqueue.active_sessions",
		metric.WithDescription("Number of live call sessions."),
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

// RecordPreemption records one preemption with the victim's policy.
func (m *Metrics) RecordPreemption(ctx context.Context, policy string) {
	m.Preemptions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("policy", policy)),
	)
}

// RecordParseError records one rejected command by error kind.
func (m *Metrics) RecordParseError(ctx context.Context, kind string) {
	m.ParseErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordFinish records a molecule leaving its lane.
func (m *Metrics) RecordFinish(ctx context.Context, reason string) {
	m.MoleculesFinished.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// StartSpan starts a span on the voxqueue tracer from the globally
// registered provider. The caller must call span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(meterName).Start(ctx, name, opts...)
}

// CorrelationID returns the active trace id from ctx, or "" when no span
// is recording. It doubles as the X-Correlation-ID the control server
// hands back to command issuers.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
