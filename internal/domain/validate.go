package domain

import "fmt"

// ErrJobMalformed wraps structural job errors. These are the only errors the
// coordinator raises to its caller; per-entity faults never surface this way.
type ErrJobMalformed struct {
	Reason string
}

func (e *ErrJobMalformed) Error() string {
	return fmt.Sprintf("job malformed: %s", e.Reason)
}

// ValidateJob checks job-level structure before fan-out.
func ValidateJob(j ReconciliationJob) error {
	if j.JobID == "" {
		return &ErrJobMalformed{Reason: "job_id is required"}
	}
	if j.ProjectRef == "" {
		return &ErrJobMalformed{Reason: "project_ref is required"}
	}
	if j.Period.Start == "" || j.Period.End == "" {
		return &ErrJobMalformed{Reason: "period start and end are required"}
	}
	if len(j.Entities) == 0 {
		return &ErrJobMalformed{Reason: "entity list is empty"}
	}
	return nil
}

// ValidateDeclared checks structural well-formedness of one declared entity.
// This is the whole of the resolving_external step: no network calls.
func ValidateDeclared(e DeclaredEntity) error {
	if e.ExternalRef == "" {
		return fmt.Errorf("external_ref is required")
	}
	if e.DeclaredDays < 0 {
		return fmt.Errorf("declared_days must be non-negative, got %v", e.DeclaredDays)
	}
	if e.DeclaredCost < 0 {
		return fmt.Errorf("declared_cost must be non-negative, got %v", e.DeclaredCost)
	}
	return nil
}

// ValidateReviewDecision checks a human review decision.
func ValidateReviewDecision(d ReviewDecision) error {
	if !d.Action.Valid() {
		return fmt.Errorf("invalid review action: %q", d.Action)
	}
	if d.By == "" {
		return fmt.Errorf("decision 'by' field is required")
	}
	if d.Action == ReviewCorrect && len(d.UpdatedEntities) == 0 {
		return fmt.Errorf("correct_and_retry requires updated entities")
	}
	for i, e := range d.UpdatedEntities {
		if err := ValidateDeclared(e); err != nil {
			return fmt.Errorf("updated entity %d: %w", i, err)
		}
	}
	return nil
}
