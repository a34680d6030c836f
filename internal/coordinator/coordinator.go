// Package coordinator fans a reconciliation job out across a bounded pool
// of entity reconcilers and fans the results back into an aggregate report.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/invoiceops/reconcile-go/internal/aggregate"
	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/policy"
	"github.com/invoiceops/reconcile-go/internal/reconciler"
)

const (
	// DefaultConcurrency bounds the entity fan-out per job.
	DefaultConcurrency = 8

	// DefaultBreakerRate is the failed-entity fraction beyond which the
	// job stops attempting new entities. A failure rate this high points
	// at the CRM being down, not at bad entity data, so burning retries
	// on the rest of the batch only delays the report.
	DefaultBreakerRate = 0.20
)

// Coordinator runs jobs. Safe for concurrent use; each Run call owns its
// own result slice and breaker state.
type Coordinator struct {
	rec         *reconciler.Reconciler
	thresholds  aggregate.Thresholds
	concurrency int
	breakerRate float64
	guard       *policy.Engine
	logger      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency bounds the number of entities reconciled in parallel.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithBreakerRate overrides the failure fraction that trips the breaker.
func WithBreakerRate(rate float64) Option {
	return func(c *Coordinator) {
		if rate > 0 && rate < 1 {
			c.breakerRate = rate
		}
	}
}

// WithThresholds overrides the decision thresholds.
func WithThresholds(t aggregate.Thresholds) Option {
	return func(c *Coordinator) { c.thresholds = t }
}

// WithPolicy attaches exposure guardrails applied after each report build.
func WithPolicy(e *policy.Engine) Option {
	return func(c *Coordinator) { c.guard = e }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a Coordinator around an entity reconciler.
func New(rec *reconciler.Reconciler, opts ...Option) *Coordinator {
	c := &Coordinator{
		rec:         rec,
		thresholds:  aggregate.DefaultThresholds(),
		concurrency: DefaultConcurrency,
		breakerRate: DefaultBreakerRate,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reconciles every entity of the job and returns the aggregate report.
//
// Entity-level problems never surface as an error: a not-found, mismatched,
// or failed entity becomes a record in the report. The only error Run
// returns is ErrJobMalformed, when the job itself fails structural
// validation before any entity is attempted.
//
// Records in the report keep the submission order of job.Entities
// regardless of completion order.
func (c *Coordinator) Run(ctx context.Context, job domain.ReconciliationJob) (*domain.AggregateReport, error) {
	if err := domain.ValidateJob(job); err != nil {
		return nil, err
	}

	c.logger.Info("job started",
		slog.String("job_id", job.JobID),
		slog.String("project_ref", job.ProjectRef),
		slog.Int("entities", len(job.Entities)),
		slog.Int("concurrency", c.concurrency))

	records := c.fanOut(ctx, job, job.Entities)
	report := aggregate.BuildReport(job, records, c.thresholds)
	c.enforce(&report)

	c.logger.Info("job finished",
		slog.String("job_id", job.JobID),
		slog.Float64("project_confidence", report.ProjectConfidence),
		slog.String("recommendation", string(report.Recommendation)),
		slog.Float64("total_delta", report.TotalDelta))
	return &report, nil
}

// Resume re-runs a job after a correct-and-retry review decision. Entities
// whose prior record already matched are carried over untouched; everything
// else is reconciled again, with declared values replaced by the decision's
// corrections where provided. Record order stays the prior report's order.
func (c *Coordinator) Resume(ctx context.Context, job domain.ReconciliationJob, prior *domain.AggregateReport, decision domain.ReviewDecision) (*domain.AggregateReport, error) {
	if err := domain.ValidateReviewDecision(decision); err != nil {
		return nil, err
	}
	if decision.Action != domain.ReviewCorrect {
		return nil, fmt.Errorf("resume only applies to %s decisions, got %s",
			domain.ReviewCorrect, decision.Action)
	}
	if prior == nil {
		return nil, fmt.Errorf("resume requires the prior report for job %s", job.JobID)
	}

	corrections := make(map[string]domain.DeclaredEntity, len(decision.UpdatedEntities))
	for _, e := range decision.UpdatedEntities {
		corrections[e.ExternalRef] = e
	}

	// Rebuild the declared list in the prior report's order: matched
	// records keep their old result, the rest go back through the pool.
	var retry []domain.DeclaredEntity
	kept := make(map[string]domain.WorkerRecord)
	for _, rec := range prior.Records {
		if rec.Status == domain.StatusMatched {
			kept[rec.ExternalRef] = rec
			continue
		}
		entity := domain.DeclaredEntity{
			ExternalRef:  rec.ExternalRef,
			DeclaredDays: rec.DeclaredDays,
			DeclaredCost: rec.DeclaredCost,
			Contact:      rec.Contact,
		}
		if corrected, ok := corrections[rec.ExternalRef]; ok {
			entity = corrected
		}
		retry = append(retry, entity)
	}

	c.logger.Info("job resumed",
		slog.String("job_id", job.JobID),
		slog.String("decided_by", decision.By),
		slog.Int("retried", len(retry)),
		slog.Int("kept", len(kept)))

	fresh := c.fanOut(ctx, job, retry)
	byRef := make(map[string]domain.WorkerRecord, len(fresh))
	for _, rec := range fresh {
		byRef[rec.ExternalRef] = rec
	}

	merged := make([]domain.WorkerRecord, 0, len(prior.Records))
	for _, old := range prior.Records {
		if rec, ok := kept[old.ExternalRef]; ok {
			merged = append(merged, rec)
		} else {
			merged = append(merged, byRef[old.ExternalRef])
		}
	}

	report := aggregate.BuildReport(job, merged, c.thresholds)
	c.enforce(&report)
	return &report, nil
}

// enforce applies the optional exposure guardrails to a freshly built report.
func (c *Coordinator) enforce(report *domain.AggregateReport) {
	if c.guard == nil {
		return
	}
	if detail := c.guard.Apply(report); detail != "" {
		c.logger.Warn("recommendation downgraded by policy",
			slog.String("job_id", report.JobID),
			slog.String("detail", detail))
	}
}

// fanOut reconciles the given entities through the bounded pool and returns
// records positionally aligned with the input slice.
func (c *Coordinator) fanOut(ctx context.Context, job domain.ReconciliationJob, entities []domain.DeclaredEntity) []domain.WorkerRecord {
	records := make([]domain.WorkerRecord, len(entities))
	total := len(entities)

	var failed atomic.Int64
	tripped := func() bool {
		if total == 0 {
			return false
		}
		return float64(failed.Load())/float64(total) > c.breakerRate
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, entity := range entities {
		g.Go(func() error {
			if tripped() {
				rec := domain.NewWorkerRecord(entity)
				rec.Status = domain.StatusFailed
				rec.FailureReason = domain.FailureNotAttempted
				rec.Confidence = domain.Confidence[domain.StatusFailed]
				rec.Error = "skipped: job failure rate exceeded the circuit breaker limit"
				records[i] = rec
				return nil
			}

			rec := c.rec.Reconcile(ctx, entity, job.ProjectRef, job.Period)
			if rec.Status == domain.StatusFailed && rec.FailureReason != domain.FailureNotAttempted {
				if n := failed.Add(1); float64(n)/float64(total) > c.breakerRate {
					c.logger.Warn("circuit breaker tripped",
						slog.String("job_id", job.JobID),
						slog.Int64("failed", n),
						slog.Int("total", total))
				}
			}
			records[i] = rec
			return nil
		})
	}
	// Workers never return errors; entity failures are records.
	_ = g.Wait()
	return records
}

// Apply stamps the report's outcome onto the job.
func Apply(job *domain.ReconciliationJob, report *domain.AggregateReport) {
	job.ProjectConfidence = report.ProjectConfidence
	job.Recommendation = report.Recommendation
	if report.StatusCounts[domain.StatusFailed] > 0 {
		job.Status = domain.JobPartiallyFailed
	} else {
		job.Status = domain.JobCompleted
	}
}
