// Package reconciler implements the per-entity reconciliation state
// machine. A Reconciler acquires both sides of the data, compares them,
// classifies the outcome, and emits at most one notification intent. It is
// side-effect-free: intents are returned on the record, never dispatched.
package reconciler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/invoiceops/reconcile-go/internal/classify"
	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/explain"
	"github.com/invoiceops/reconcile-go/internal/resolver"
)

// Phase names for the per-entity state machine. Phases only move forward;
// failed is reachable from any resolving phase.
const (
	PhasePending       = "pending"
	PhaseExternal      = "resolving_external"
	PhaseAuthoritative = "resolving_authoritative"
	PhaseComparing     = "comparing"
	PhaseClassified    = "classified"
	PhaseNotifying     = "notifying"
	PhaseDone          = "done"
	PhaseFailed        = "failed"
)

// Reconciler runs the state machine for single entities. Safe for
// concurrent use: all per-entity state lives in the WorkerRecord.
type Reconciler struct {
	resolver  *resolver.Resolver
	explainer explain.Explainer
	logger    *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithExplainer attaches an optional discrepancy explainer.
func WithExplainer(ex explain.Explainer) Option {
	return func(r *Reconciler) { r.explainer = ex }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// New creates a Reconciler backed by the given lookup-chain resolver.
func New(res *resolver.Resolver, opts ...Option) *Reconciler {
	r := &Reconciler{resolver: res, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile runs one entity to a terminal status. It never returns an
// error: every fault is captured on the returned record so the coordinator
// can aggregate it. The returned record is final and must not be mutated.
func (r *Reconciler) Reconcile(ctx context.Context, entity domain.DeclaredEntity, projectRef string, period domain.Period) domain.WorkerRecord {
	rec := domain.NewWorkerRecord(entity)
	log := r.logger.With("entity", entity.ExternalRef, "project", projectRef)

	// resolving_external: declared values arrived with the submission, so
	// this phase is structural validation only, no network.
	log.Debug("phase transition", "phase", PhaseExternal)
	if err := domain.ValidateDeclared(entity); err != nil {
		return r.fail(log, rec, domain.FailureInvalidInput, err)
	}

	// resolving_authoritative: drive the lookup chain.
	log.Debug("phase transition", "phase", PhaseAuthoritative)
	out, err := r.resolver.Resolve(ctx, entity.ExternalRef, projectRef, period)
	rec.Vars = out.Vars
	rec.Trace = out.Trace
	rec.CRMID = out.CRMID

	declared := classify.Values{Days: rec.DeclaredDays, Cost: rec.DeclaredCost}

	if err != nil {
		if resolver.IsNotFound(err) {
			// Terminal but not a failure: classified without comparison.
			log.Debug("phase transition", "phase", PhaseClassified, "status", domain.StatusEntityNotFound)
			res := classify.NotFound(declared)
			r.apply(&rec, res)
			r.annotate(ctx, &rec)
			return rec
		}
		reason := domain.FailureChainError
		if errors.Is(err, context.Canceled) {
			reason = domain.FailureCanceled
		}
		return r.fail(log, rec, reason, err)
	}

	rec.CRMDays = out.Days
	rec.CRMCost = out.Cost

	// comparing → classified: pure, synchronous, CPU-only.
	log.Debug("phase transition", "phase", PhaseComparing)
	res := classify.Classify(declared, classify.Values{Days: out.Days, Cost: out.Cost})
	r.apply(&rec, res)

	if res.Recipient != "" {
		log.Debug("phase transition", "phase", PhaseNotifying, "recipient", res.Recipient)
		rec.Notification = &domain.NotificationIntent{
			Recipient:     res.Recipient,
			EntityRef:     rec.ExternalRef,
			Contact:       rec.Contact,
			Status:        rec.Status,
			Discrepancies: rec.Discrepancies,
		}
	}

	r.annotate(ctx, &rec)
	log.Debug("phase transition", "phase", PhaseDone, "status", rec.Status, "confidence", rec.Confidence)
	return rec
}

// apply copies a classification result onto the record.
func (r *Reconciler) apply(rec *domain.WorkerRecord, res classify.Result) {
	rec.Status = res.Status
	rec.Confidence = res.Confidence
	rec.DaysMatch = res.DaysMatch
	rec.CostMatch = res.CostMatch
	rec.Discrepancies = res.Discrepancies
}

// fail finalizes the record in the failed state with the given reason.
func (r *Reconciler) fail(log *slog.Logger, rec domain.WorkerRecord, reason domain.FailureReason, err error) domain.WorkerRecord {
	log.Warn("entity reconciliation failed", "reason", reason, "error", err)
	rec.Status = domain.StatusFailed
	rec.Confidence = domain.Confidence[domain.StatusFailed]
	rec.FailureReason = reason
	rec.Error = err.Error()
	return rec
}

// annotate runs the optional explanation enrichment. It cannot change any
// outcome field.
func (r *Reconciler) annotate(ctx context.Context, rec *domain.WorkerRecord) {
	explain.Annotate(ctx, r.explainer, rec.ExternalRef, rec.Discrepancies)
	if rec.Notification != nil {
		rec.Notification.Discrepancies = rec.Discrepancies
	}
}
