package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/invoiceops/reconcile-go/internal/coordinator"
	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/notify"
	"github.com/invoiceops/reconcile-go/internal/observability"
	"github.com/invoiceops/reconcile-go/internal/verifier"
)

// Activities holds the dependencies for all Temporal activities.
// Each method is registered as a Temporal activity. Metrics may be nil
// when telemetry is not configured.
type Activities struct {
	Coordinator *coordinator.Coordinator
	Notifier    notify.Dispatcher
	Metrics     *observability.Metrics
}

// RunReconciliation fans the job out across the entity pool and returns the
// aggregate report. Entity-level faults are records inside the report; only
// a structurally malformed job produces an activity error.
func (a *Activities) RunReconciliation(ctx context.Context, in RunInput) (RunOutput, error) {
	report, err := a.Coordinator.Run(ctx, in.Job)
	if err != nil {
		return RunOutput{}, fmt.Errorf("run activity: %w", err)
	}
	a.recordReport(ctx, report)
	return RunOutput{Report: *report}, nil
}

// ResumeReconciliation re-runs the non-matched entities of a reviewed job
// with the human's corrections applied.
func (a *Activities) ResumeReconciliation(ctx context.Context, in ResumeInput) (ResumeOutput, error) {
	report, err := a.Coordinator.Resume(ctx, in.Job, &in.Prior, in.Decision)
	if err != nil {
		return ResumeOutput{}, fmt.Errorf("resume activity: %w", err)
	}
	a.recordReport(ctx, report)
	return ResumeOutput{Report: *report}, nil
}

// DispatchNotifications delivers the report's notification intents. Refs
// that could not be notified are returned rather than failing the activity,
// so one unreachable contact does not poison the job.
func (a *Activities) DispatchNotifications(ctx context.Context, in DispatchInput) (DispatchOutput, error) {
	if a.Notifier == nil {
		return DispatchOutput{}, fmt.Errorf("dispatch activity: no notifier configured")
	}
	failed := notify.DispatchAll(ctx, a.Notifier, &in.Report)
	return DispatchOutput{FailedRefs: failed}, nil
}

// RecordReviewOutcome publishes review decision telemetry. It never fails:
// a metrics outage must not disturb a job that a human just resolved.
func (a *Activities) RecordReviewOutcome(ctx context.Context, in ReviewOutcomeInput) error {
	if a.Metrics == nil {
		return nil
	}
	a.Metrics.RecordReviewLatency(ctx, in.Latency)
	return nil
}

func (a *Activities) recordReport(ctx context.Context, report *domain.AggregateReport) {
	// An inconsistent report is an engine bug; surface it without blocking
	// the workflow.
	if err := verifier.VerifyReport(report); err != nil && activity.IsActivity(ctx) {
		activity.GetLogger(ctx).Error("report failed consistency check",
			"job_id", report.JobID, "error", err)
	}

	if a.Metrics == nil {
		return
	}
	a.Metrics.RecordJob(ctx, report.ProjectConfidence, string(report.Recommendation))
	a.Metrics.RecordDelta(ctx, report.TotalDelta)
	tripped := false
	for _, rec := range report.Records {
		a.Metrics.RecordEntity(ctx, string(rec.Status))
		for _, step := range rec.Trace {
			a.Metrics.RecordLookup(ctx, step.Name)
		}
		if rec.FailureReason == domain.FailureNotAttempted {
			tripped = true
		}
	}
	if tripped {
		a.Metrics.RecordBreakerTrip(ctx, report.ProjectRef)
	}
}
