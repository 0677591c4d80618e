package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Resolution outcomes recorded on tenancy_resolution_total.
const (
	OutcomeResolved = "resolved"
	OutcomeNotFound = "not_found"
	OutcomeNone     = "none"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

// TenancyMetrics groups the instruments recorded by tenant resolution, the
// configuration pipeline and the scoping guard.
type TenancyMetrics struct {
	resolutions     *Counter
	violations      *Counter
	pipeFailures    *Counter
	pipelineLatency *Histogram
}

// NewTenancyMetrics creates the instruments on meter.
func NewTenancyMetrics(meter metric.Meter) (*TenancyMetrics, error) {
	resolutions, err := NewCounter(meter, "tenancy_resolution_total",
		"Tenant resolution attempts by outcome", "{request}")
	if err != nil {
		return nil, err
	}
	violations, err := NewCounter(meter, "tenancy_cross_tenant_violation_total",
		"Writes rejected because the record belongs to another tenant", "{violation}")
	if err != nil {
		return nil, err
	}
	pipeFailures, err := NewCounter(meter, "tenancy_pipe_failure_total",
		"Configuration pipe failures", "{failure}")
	if err != nil {
		return nil, err
	}
	latency, err := NewHistogram(meter, HistogramOpts{
		Name:        "tenancy_pipeline_duration_seconds",
		Description: "Time to apply the configuration pipeline",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &TenancyMetrics{
		resolutions:     resolutions,
		violations:      violations,
		pipeFailures:    pipeFailures,
		pipelineLatency: latency,
	}, nil
}

// NopTenancyMetrics returns metrics backed by a no-op meter.
func NopTenancyMetrics() *TenancyMetrics {
	m, _ := NewTenancyMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

// RecordResolution counts one resolution attempt.
func (m *TenancyMetrics) RecordResolution(ctx context.Context, resolver, outcome string, cacheHit bool) {
	m.resolutions.Inc(ctx,
		AttrResolver.String(resolver),
		AttrOutcome.String(outcome),
		AttrCacheHit.Bool(cacheHit),
	)
}

// RecordViolation counts a cross-tenant write attempt.
func (m *TenancyMetrics) RecordViolation(ctx context.Context, resource string) {
	m.violations.Inc(ctx, AttrResource.String(resource))
}

// RecordPipeFailure counts a failed pipe.
func (m *TenancyMetrics) RecordPipeFailure(ctx context.Context, pipe string) {
	m.pipeFailures.Inc(ctx, AttrPipe.String(pipe))
}

// RecordPipeline records how long a pipeline run took.
func (m *TenancyMetrics) RecordPipeline(ctx context.Context, d time.Duration, tenantPublicID string) {
	m.pipelineLatency.RecordDuration(ctx, d, attribute.String("tenant_id", tenantPublicID))
}
