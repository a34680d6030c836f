// Package verifier checks the internal consistency of aggregate reports
// before they leave the engine.
package verifier

import (
	"fmt"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

// VerifyReport checks the structural invariants every finished report must
// hold. A non-nil error means the engine produced an inconsistent report;
// callers log it loudly rather than shipping the report downstream silently.
func VerifyReport(report *domain.AggregateReport) error {
	if report == nil {
		return fmt.Errorf("verify: report is nil")
	}

	counted := 0
	for status, n := range report.StatusCounts {
		if n < 0 {
			return fmt.Errorf("verify: negative count %d for status %s", n, status)
		}
		counted += n
	}
	if counted != len(report.Records) {
		return fmt.Errorf("verify: status counts sum to %d but report has %d records",
			counted, len(report.Records))
	}

	if report.ProjectConfidence < 0 || report.ProjectConfidence > 1 {
		return fmt.Errorf("verify: project confidence %v out of [0,1]", report.ProjectConfidence)
	}

	seen := make(map[string]bool, len(report.Records))
	byRef := make(map[string]domain.RecordStatus, len(report.Records))
	for i, rec := range report.Records {
		if rec.ExternalRef == "" {
			return fmt.Errorf("verify: record %d has no external_ref", i)
		}
		if seen[rec.ExternalRef] {
			return fmt.Errorf("verify: duplicate record for %s", rec.ExternalRef)
		}
		seen[rec.ExternalRef] = true
		byRef[rec.ExternalRef] = rec.Status

		if rec.Status == domain.StatusPending {
			return fmt.Errorf("verify: record %s still pending", rec.ExternalRef)
		}
	}

	for _, ref := range report.FlaggedEntities {
		status, ok := byRef[ref]
		if !ok {
			return fmt.Errorf("verify: flagged entity %s has no record", ref)
		}
		if status == domain.StatusMatched {
			return fmt.Errorf("verify: matched entity %s must not be flagged", ref)
		}
	}

	for _, p := range report.Patterns {
		for _, ref := range p.AffectedEntities {
			if !seen[ref] {
				return fmt.Errorf("verify: pattern %q references unknown entity %s", p.Description, ref)
			}
		}
	}

	return nil
}
