package uischema

import "github.com/invoiceops/reconcile-go/internal/domain"

const schemaVersion = "v1"

// Build constructs a UISchema from the current job state.
// The schema drives what the frontend renders -- no raw JSX from the backend.
func Build(phase string, job domain.ReconciliationJob, report *domain.AggregateReport) UISchema {
	schema := UISchema{
		Version: schemaVersion,
		JobID:   job.JobID,
		Phase:   phase,
	}

	schema.Components = append(schema.Components, jobSummary(job, phase))

	// Before the first report lands there is nothing else to show.
	if report == nil {
		return schema
	}

	schema.Components = append(schema.Components, decisionBanner(report))

	if len(report.FlaggedEntities) > 0 || report.Recommendation != domain.RecommendProceed {
		schema.Components = append(schema.Components, discrepancyTable(report))
	}

	if len(report.Patterns) > 0 {
		schema.Components = append(schema.Components, patternPanel(report.Patterns))
	}

	if report.StatusCounts[domain.StatusFailed] > 0 {
		schema.Components = append(schema.Components, failurePanel(report))
	}

	schema.Components = append(schema.Components, lookupTrace(report))

	// At the review gate: queue component + accept/correct/cancel actions.
	if phase == "awaiting_review" {
		schema.Components = append(schema.Components, reviewQueue(report))
		accept := Action{Type: ActionAccept, Label: "Accept As-Is"}
		if report.Recommendation == domain.RecommendReject {
			accept.Confirm = &ConfirmConfig{
				Required:        true,
				AcknowledgeText: "I understand confidence is below the reject threshold",
			}
		}
		schema.Actions = append(schema.Actions,
			accept,
			Action{Type: ActionCorrect, Label: "Correct Declarations"},
			Action{Type: ActionCancel, Label: "Cancel Job"},
		)
	}

	return schema
}
