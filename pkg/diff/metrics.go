package diff

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names, namespaced under "diff." the way pkg/observability
// namespaces its RED metrics under "codefang.".
const (
	metricApplyTotal    = "diff.apply.total"
	metricApplyDuration = "diff.apply.duration.seconds"
	metricVerbsTotal    = "diff.verbs.total"
	metricConflictTotal = "diff.conflicts.total"
	metricScopeDepth    = "diff.scope.depth"

	attrStatus = "status"
	attrVerb   = "verb"
)

var applyDurationBuckets = []float64{ //nolint:gochecknoglobals // static histogram boundaries, mirrors pkg/observability.
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

var scopeDepthBuckets = []float64{ //nolint:gochecknoglobals // static histogram boundaries, small integer depths.
	0, 1, 2, 3, 4, 5, 8, 13, 21,
}

// Metrics holds the OTel instruments the driver records against. Construct
// once per process via NewMetrics(meter) and share across Driver instances.
type Metrics struct {
	applyTotal    metric.Int64Counter
	applyDuration metric.Float64Histogram
	verbsTotal    metric.Int64Counter
	conflictTotal metric.Int64Counter
	scopeDepth    metric.Float64Histogram
}

// NewMetrics creates the diff engine's instrument set from an OTel meter,
// following the same construction pattern as pkg/observability.NewREDMetrics.
func NewMetrics(mt metric.Meter) (*Metrics, error) {
	applyTotal, err := mt.Int64Counter(metricApplyTotal,
		metric.WithDescription("Total number of diff applications"),
		metric.WithUnit("{application}"),
	)
	if err != nil {
		return nil, fmt.Errorf("diff: create %s: %w", metricApplyTotal, err)
	}

	applyDuration, err := mt.Float64Histogram(metricApplyDuration,
		metric.WithDescription("Diff application wall time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(applyDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("diff: create %s: %w", metricApplyDuration, err)
	}

	verbsTotal, err := mt.Int64Counter(metricVerbsTotal,
		metric.WithDescription("Total number of verbs successfully dispatched"),
		metric.WithUnit("{verb}"),
	)
	if err != nil {
		return nil, fmt.Errorf("diff: create %s: %w", metricVerbsTotal, err)
	}

	conflictTotal, err := mt.Int64Counter(metricConflictTotal,
		metric.WithDescription("Total number of diff conflicts raised"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return nil, fmt.Errorf("diff: create %s: %w", metricConflictTotal, err)
	}

	scopeDepth, err := mt.Float64Histogram(metricScopeDepth,
		metric.WithDescription("Nested mut()/emu() scope depth reached during an Apply call"),
		metric.WithUnit("{scope}"),
		metric.WithExplicitBucketBoundaries(scopeDepthBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("diff: create %s: %w", metricScopeDepth, err)
	}

	return &Metrics{
		applyTotal:    applyTotal,
		applyDuration: applyDuration,
		verbsTotal:    verbsTotal,
		conflictTotal: conflictTotal,
		scopeDepth:    scopeDepth,
	}, nil
}

// RecordApply records one completed Apply call.
func (m *Metrics) RecordApply(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	m.applyTotal.Add(ctx, 1, attrs)
	m.applyDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordVerb records one successfully dispatched verb.
func (m *Metrics) RecordVerb(ctx context.Context, selector string) {
	m.verbsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrVerb, selector)))
}

// RecordConflict records one conflict raised for the given verb selector.
func (m *Metrics) RecordConflict(ctx context.Context, selector string) {
	m.conflictTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrVerb, selector)))
}

// RecordScopeDepth records the deepest nested mut()/emu() scope reached
// during one Apply call.
func (m *Metrics) RecordScopeDepth(ctx context.Context, depth int) {
	m.scopeDepth.Record(ctx, float64(depth))
}
