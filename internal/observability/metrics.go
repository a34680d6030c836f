package observability

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds OTel metric instruments for the reconciliation engine.
type Metrics struct {
	EntityCount   metric.Int64Counter
	JobConfidence metric.Float64Histogram
	DeltaObserved metric.Float64Counter
	LookupCalls   metric.Int64Counter
	ReviewLatency metric.Float64Histogram
	BreakerTrips  metric.Int64Counter
}

// NewMetrics creates the reconciliation metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("reconcile")

	entityCount, err := meter.Int64Counter("reconcile.entity.count",
		metric.WithDescription("Number of entities reconciled, by terminal status"),
	)
	if err != nil {
		return nil, err
	}

	jobConfidence, err := meter.Float64Histogram("reconcile.job.confidence",
		metric.WithDescription("Project confidence score per completed job"),
	)
	if err != nil {
		return nil, err
	}

	deltaObserved, err := meter.Float64Counter("reconcile.delta.dollars",
		metric.WithDescription("Absolute declared-versus-derived dollar delta observed"),
	)
	if err != nil {
		return nil, err
	}

	lookupCalls, err := meter.Int64Counter("reconcile.lookup.calls",
		metric.WithDescription("Number of CRM lookup-chain calls, by step"),
	)
	if err != nil {
		return nil, err
	}

	reviewLatency, err := meter.Float64Histogram("reconcile.review.latency_seconds",
		metric.WithDescription("Time from review request to human decision"),
	)
	if err != nil {
		return nil, err
	}

	breakerTrips, err := meter.Int64Counter("reconcile.breaker.trips",
		metric.WithDescription("Number of jobs halted by the failure-rate circuit breaker"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		EntityCount:   entityCount,
		JobConfidence: jobConfidence,
		DeltaObserved: deltaObserved,
		LookupCalls:   lookupCalls,
		ReviewLatency: reviewLatency,
		BreakerTrips:  breakerTrips,
	}, nil
}

// RecordEntity records one entity reaching a terminal status.
func (m *Metrics) RecordEntity(ctx context.Context, status string) {
	m.EntityCount.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordJob records a completed job's confidence and recommendation.
func (m *Metrics) RecordJob(ctx context.Context, confidence float64, recommendation string) {
	m.JobConfidence.Record(ctx, confidence,
		metric.WithAttributes(attribute.String("recommendation", recommendation)),
	)
}

// RecordDelta records the absolute dollar delta of a finished report.
func (m *Metrics) RecordDelta(ctx context.Context, delta float64) {
	m.DeltaObserved.Add(ctx, math.Abs(delta))
}

// RecordLookup records one CRM lookup-chain call.
func (m *Metrics) RecordLookup(ctx context.Context, step string) {
	m.LookupCalls.Add(ctx, 1,
		metric.WithAttributes(attribute.String("step", step)),
	)
}

// RecordReviewLatency records the time from review request to decision.
func (m *Metrics) RecordReviewLatency(ctx context.Context, d time.Duration) {
	m.ReviewLatency.Record(ctx, d.Seconds())
}

// RecordBreakerTrip records a circuit-breaker halt.
func (m *Metrics) RecordBreakerTrip(ctx context.Context, projectRef string) {
	m.BreakerTrips.Add(ctx, 1,
		metric.WithAttributes(attribute.String("project_ref", projectRef)),
	)
}
