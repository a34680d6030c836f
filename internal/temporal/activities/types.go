// Package activities defines the Temporal activity I/O structs and the
// Activities implementation that bridges Temporal's serialization boundary
// to the engine packages in internal/.
package activities

import (
	"time"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

// RunInput is the activity input for a full reconciliation run.
type RunInput struct {
	Job domain.ReconciliationJob `json:"job"`
}

// RunOutput is the activity output from a reconciliation run.
type RunOutput struct {
	Report domain.AggregateReport `json:"report"`
}

// ResumeInput is the activity input for re-running a job after a
// correct-and-retry review decision.
type ResumeInput struct {
	Job      domain.ReconciliationJob `json:"job"`
	Prior    domain.AggregateReport   `json:"prior"`
	Decision domain.ReviewDecision    `json:"decision"`
}

// ResumeOutput is the activity output from a resumed run.
type ResumeOutput struct {
	Report domain.AggregateReport `json:"report"`
}

// DispatchInput is the activity input for notification dispatch.
type DispatchInput struct {
	Report domain.AggregateReport `json:"report"`
}

// DispatchOutput is the activity output from notification dispatch.
type DispatchOutput struct {
	FailedRefs []string `json:"failed_refs,omitempty"`
}

// ReviewOutcomeInput is the activity input for review decision telemetry.
type ReviewOutcomeInput struct {
	JobID   string              `json:"job_id"`
	Action  domain.ReviewAction `json:"action"`
	Latency time.Duration       `json:"latency"`
}

// ReviewResponse is sent via the Temporal Update handler when a human
// resolves a report that required review.
type ReviewResponse struct {
	Action          domain.ReviewAction     `json:"action"`
	By              string                  `json:"by"`
	Reason          string                  `json:"reason,omitempty"`
	UpdatedEntities []domain.DeclaredEntity `json:"updated_entities,omitempty"`
}

// Decision converts the update payload to the domain decision type.
func (r ReviewResponse) Decision() domain.ReviewDecision {
	return domain.ReviewDecision{
		Action:          r.Action,
		By:              r.By,
		Reason:          r.Reason,
		UpdatedEntities: r.UpdatedEntities,
	}
}
