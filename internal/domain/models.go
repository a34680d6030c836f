package domain

import (
	"time"

	"github.com/google/uuid"
)

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Period is a billing period, inclusive date bounds in YYYY-MM-DD form.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DeclaredEntity is one consultant as reported by the client submission.
// Values are unverified; the reconciliation engine only checks structure.
type DeclaredEntity struct {
	ExternalRef  string  `json:"external_ref"`
	DeclaredDays float64 `json:"declared_days"`
	DeclaredCost float64 `json:"declared_cost"`
	Contact      string  `json:"contact,omitempty"`
}

// LookupStep records one call of the lookup chain: its inputs, output, and
// error if any. Scoped to a single WorkerRecord's resolution.
type LookupStep struct {
	Name     string         `json:"name"`
	Input    map[string]any `json:"input,omitempty"`
	Output   any            `json:"output,omitempty"`
	Err      string         `json:"error,omitempty"`
	Attempts int            `json:"attempts"`
}

// Discrepancy describes a specific declared/derived divergence.
type Discrepancy struct {
	Kind        DiscrepancyKind `json:"kind"`
	Declared    float64         `json:"declared"`
	Derived     float64         `json:"derived"`
	Delta       float64         `json:"delta"`
	Explanation string          `json:"explanation,omitempty"`
}

// NotificationIntent is emitted by the reconciler for the notification
// collaborator to dispatch. The engine never formats or sends messages.
type NotificationIntent struct {
	Recipient     RecipientKind `json:"recipient_kind"`
	EntityRef     string        `json:"entity_ref"`
	Contact       string        `json:"contact,omitempty"`
	Status        RecordStatus  `json:"status"`
	Discrepancies []Discrepancy `json:"discrepancy_details"`
}

// WorkerRecord is one entity under reconciliation. It is owned exclusively
// by its reconciler while in flight and read-only once returned.
type WorkerRecord struct {
	ExternalRef string `json:"external_ref"`
	CRMID       string `json:"crm_id,omitempty"`
	Contact     string `json:"contact,omitempty"`

	DeclaredDays float64 `json:"declared_days"`
	DeclaredCost float64 `json:"declared_cost"`
	CRMDays      float64 `json:"crm_days"`
	CRMCost      float64 `json:"crm_cost"`

	// Vars accumulates intermediate lookup-chain values; Trace records the
	// calls that produced them.
	Vars  map[string]any `json:"vars,omitempty"`
	Trace []LookupStep   `json:"trace,omitempty"`

	DaysMatch bool `json:"days_match"`
	CostMatch bool `json:"cost_match"`

	Status        RecordStatus  `json:"status"`
	Confidence    float64       `json:"confidence"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	Error         string        `json:"error,omitempty"`

	Discrepancies []Discrepancy       `json:"discrepancies,omitempty"`
	Notification  *NotificationIntent `json:"notification,omitempty"`
}

// NewWorkerRecord creates a pending record from a declared entity.
func NewWorkerRecord(e DeclaredEntity) WorkerRecord {
	return WorkerRecord{
		ExternalRef:  e.ExternalRef,
		Contact:      e.Contact,
		DeclaredDays: e.DeclaredDays,
		DeclaredCost: e.DeclaredCost,
		Status:       StatusPending,
	}
}

// Pattern is an advisory annotation describing a shared discrepancy shape.
type Pattern struct {
	Description      string   `json:"description"`
	AffectedEntities []string `json:"affected_entities"`
}

// AggregateReport summarizes a completed reconciliation job. Records appear
// in submission order, including failed and not-attempted entities.
type AggregateReport struct {
	JobID      string `json:"job_id"`
	ProjectRef string `json:"project_ref"`
	Period     Period `json:"period"`

	Records      []WorkerRecord       `json:"records"`
	StatusCounts map[RecordStatus]int `json:"status_counts"`
	TotalDelta   float64              `json:"total_delta_dollars"`

	Patterns []Pattern `json:"patterns,omitempty"`

	ProjectConfidence float64        `json:"project_confidence"`
	Recommendation    Recommendation `json:"recommendation"`
	FlaggedEntities   []string       `json:"flagged_entities,omitempty"`

	GeneratedAt string `json:"generated_at"`
}

// Intents returns the notification intents attached to the report's records.
func (r *AggregateReport) Intents() []NotificationIntent {
	var intents []NotificationIntent
	for _, rec := range r.Records {
		if rec.Notification != nil {
			intents = append(intents, *rec.Notification)
		}
	}
	return intents
}

// ReconciliationJob is one project-period batch. Mutated only by the
// coordinator and aggregator; immutable once Status is completed.
type ReconciliationJob struct {
	JobID      string           `json:"job_id"`
	ProjectRef string           `json:"project_ref"`
	Period     Period           `json:"period"`
	Entities   []DeclaredEntity `json:"entities"`

	Status            JobStatus      `json:"status"`
	ProjectConfidence float64        `json:"project_confidence"`
	Recommendation    Recommendation `json:"recommendation,omitempty"`

	SubmittedAt    string `json:"submitted_at"`
	DecidedBy      string `json:"decided_by,omitempty"`
	DecisionReason string `json:"decision_reason,omitempty"`
}

// NewReconciliationJob creates a pending job with a generated ID.
func NewReconciliationJob(projectRef string, period Period, entities []DeclaredEntity) ReconciliationJob {
	return ReconciliationJob{
		JobID:       uuid.NewString(),
		ProjectRef:  projectRef,
		Period:      period,
		Entities:    entities,
		Status:      JobPending,
		SubmittedAt: nowUTC(),
	}
}

// ReviewDecision is the human-approval collaborator's response to a report
// whose recommendation was review or reject.
type ReviewDecision struct {
	Action          ReviewAction     `json:"action"`
	By              string           `json:"by"`
	Reason          string           `json:"reason,omitempty"`
	UpdatedEntities []DeclaredEntity `json:"updated_entities,omitempty"`
}
