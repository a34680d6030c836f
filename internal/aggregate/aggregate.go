// Package aggregate builds the job-level report and recommendation from a
// complete set of worker records. Like classify, it is deterministic and
// threshold-based; no model is consulted for the decision.
package aggregate

import (
	"fmt"
	"time"

	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/patterns"
)

// Thresholds maps project confidence to a recommendation. Bounds are
// inclusive and evaluated highest first.
type Thresholds struct {
	// Auto is the floor for proceed. Only a fully matched job reaches it.
	Auto float64 `json:"auto_approve"`
	// Review is the floor for proceed_with_flags.
	Review float64 `json:"review"`
	// Reject is the floor for review; anything below is rejected.
	Reject float64 `json:"reject"`
}

// DefaultThresholds returns the standard decision bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Auto: 1.0, Review: 0.85, Reject: 0.70}
}

// Validate checks the thresholds are in range and correctly ordered.
func (t Thresholds) Validate() error {
	if t.Auto <= 0 || t.Auto > 1 {
		return fmt.Errorf("auto threshold %v out of range (0,1]", t.Auto)
	}
	if t.Review <= 0 || t.Review > 1 {
		return fmt.Errorf("review threshold %v out of range (0,1]", t.Review)
	}
	if t.Reject <= 0 || t.Reject > 1 {
		return fmt.Errorf("reject threshold %v out of range (0,1]", t.Reject)
	}
	if t.Auto < t.Review || t.Review < t.Reject {
		return fmt.Errorf("thresholds must satisfy auto >= review >= reject, got %v/%v/%v",
			t.Auto, t.Review, t.Reject)
	}
	return nil
}

// Recommend maps a project confidence to a recommendation.
func (t Thresholds) Recommend(confidence float64) domain.Recommendation {
	switch {
	case confidence >= t.Auto:
		return domain.RecommendProceed
	case confidence >= t.Review:
		return domain.RecommendProceedWithFlags
	case confidence >= t.Reject:
		return domain.RecommendReview
	default:
		return domain.RecommendReject
	}
}

// BuildReport assembles the aggregate view of a finished job. Records must
// already be in submission order; they are carried through untouched.
//
// Project confidence is the arithmetic mean over every record, so failed
// and not-found entities (confidence 0) drag the score down rather than
// being silently excluded.
func BuildReport(job domain.ReconciliationJob, records []domain.WorkerRecord, thresholds Thresholds) domain.AggregateReport {
	report := domain.AggregateReport{
		JobID:        job.JobID,
		ProjectRef:   job.ProjectRef,
		Period:       job.Period,
		Records:      records,
		StatusCounts: make(map[domain.RecordStatus]int, 4),
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	var confidenceSum float64
	for _, rec := range records {
		report.StatusCounts[rec.Status]++
		confidenceSum += rec.Confidence
		report.TotalDelta += dollarDelta(rec)
		if rec.Status != domain.StatusMatched {
			report.FlaggedEntities = append(report.FlaggedEntities, rec.ExternalRef)
		}
	}

	if len(records) > 0 {
		report.ProjectConfidence = confidenceSum / float64(len(records))
	}
	report.Recommendation = thresholds.Recommend(report.ProjectConfidence)
	report.Patterns = patterns.Detect(records)
	return report
}

// dollarDelta is the record's contribution to the job's financial exposure.
// Compared records contribute declared minus derived cost. A not-found
// entity has no derived side, so its whole declared cost is at stake.
// Failed records contribute nothing: their exposure is unknown, not zero,
// and the failure already blocks auto-approval through confidence.
func dollarDelta(rec domain.WorkerRecord) float64 {
	switch rec.Status {
	case domain.StatusMatched, domain.StatusDaysMismatch, domain.StatusCostMismatch:
		return rec.DeclaredCost - rec.CRMCost
	case domain.StatusEntityNotFound:
		return rec.DeclaredCost
	}
	return 0
}
