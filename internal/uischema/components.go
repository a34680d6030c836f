package uischema

import "github.com/invoiceops/reconcile-go/internal/domain"

// jobSummary builds the always-present job overview component.
func jobSummary(job domain.ReconciliationJob, phase string) Component {
	return Component{
		Type:       ComponentJobSummary,
		Title:      "Reconciliation Job",
		Priority:   0,
		Visibility: VisibilityVisible,
		Data: map[string]any{
			"job_id":       job.JobID,
			"project_ref":  job.ProjectRef,
			"period_start": job.Period.Start,
			"period_end":   job.Period.End,
			"entity_count": len(job.Entities),
			"phase":        phase,
		},
	}
}

// decisionBanner builds the confidence and recommendation header.
func decisionBanner(report *domain.AggregateReport) Component {
	counts := make(map[string]int, len(report.StatusCounts))
	for status, n := range report.StatusCounts {
		counts[string(status)] = n
	}
	return Component{
		Type:       ComponentDecisionBanner,
		Title:      "Decision",
		Priority:   10,
		Visibility: VisibilityVisible,
		Data: map[string]any{
			"project_confidence": report.ProjectConfidence,
			"recommendation":     string(report.Recommendation),
			"total_delta":        report.TotalDelta,
			"status_counts":      counts,
		},
	}
}

// discrepancyTable lists each non-matched entity with both sides of the
// comparison and the classifier's explanations.
func discrepancyTable(report *domain.AggregateReport) Component {
	var rows []map[string]any
	for _, rec := range report.Records {
		if rec.Status == domain.StatusMatched {
			continue
		}
		row := map[string]any{
			"external_ref":  rec.ExternalRef,
			"status":        string(rec.Status),
			"declared_days": rec.DeclaredDays,
			"crm_days":      rec.CRMDays,
			"declared_cost": rec.DeclaredCost,
			"crm_cost":      rec.CRMCost,
			"confidence":    rec.Confidence,
		}
		var explanations []string
		for _, d := range rec.Discrepancies {
			if d.Explanation != "" {
				explanations = append(explanations, d.Explanation)
			}
		}
		if len(explanations) > 0 {
			row["explanations"] = explanations
		}
		rows = append(rows, row)
	}
	return Component{
		Type:       ComponentDiscrepancyTable,
		Title:      "Discrepancies",
		Priority:   20,
		Visibility: VisibilityVisible,
		Data: map[string]any{
			"rows":             rows,
			"flagged_entities": report.FlaggedEntities,
		},
	}
}

// patternPanel surfaces cross-entity discrepancy shapes.
func patternPanel(patterns []domain.Pattern) Component {
	items := make([]map[string]any, len(patterns))
	for i, p := range patterns {
		items[i] = map[string]any{
			"description":       p.Description,
			"affected_entities": p.AffectedEntities,
		}
	}
	return Component{
		Type:       ComponentPatternPanel,
		Title:      "Detected Patterns",
		Priority:   30,
		Visibility: VisibilityVisible,
		Data:       map[string]any{"patterns": items},
	}
}

// failurePanel lists entities whose lookup chain failed.
func failurePanel(report *domain.AggregateReport) Component {
	var rows []map[string]any
	for _, rec := range report.Records {
		if rec.Status != domain.StatusFailed {
			continue
		}
		rows = append(rows, map[string]any{
			"external_ref":   rec.ExternalRef,
			"failure_reason": string(rec.FailureReason),
			"error":          rec.Error,
		})
	}
	return Component{
		Type:       ComponentFailurePanel,
		Title:      "Lookup Failures",
		Priority:   40,
		Visibility: VisibilityVisible,
		Data:       map[string]any{"rows": rows},
	}
}

// lookupTrace exposes the full per-entity audit trail, collapsed by default.
func lookupTrace(report *domain.AggregateReport) Component {
	traces := make(map[string]any, len(report.Records))
	for _, rec := range report.Records {
		if len(rec.Trace) == 0 {
			continue
		}
		steps := make([]map[string]any, len(rec.Trace))
		for i, s := range rec.Trace {
			steps[i] = map[string]any{
				"name":     s.Name,
				"input":    s.Input,
				"output":   s.Output,
				"error":    s.Err,
				"attempts": s.Attempts,
			}
		}
		traces[rec.ExternalRef] = steps
	}
	return Component{
		Type:       ComponentLookupTrace,
		Title:      "Lookup Traces",
		Priority:   50,
		Visibility: VisibilityCollapsed,
		Data:       map[string]any{"traces": traces},
	}
}

// reviewQueue builds the pending-review component.
func reviewQueue(report *domain.AggregateReport) Component {
	return Component{
		Type:       ComponentReviewQueue,
		Title:      "Review Required",
		Priority:   60,
		Visibility: VisibilityVisible,
		Data: map[string]any{
			"recommendation":   string(report.Recommendation),
			"flagged_entities": report.FlaggedEntities,
		},
	}
}
