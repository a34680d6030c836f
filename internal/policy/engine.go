// Package policy implements deterministic guardrails layered on top of the
// confidence thresholds. Confidence measures how well declarations agree with
// the CRM; the guardrails bound the dollar exposure a job may carry into an
// automated approval regardless of how confident the comparison is.
package policy

import (
	"fmt"
	"math"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

// Engine downgrades a report's recommendation when its exposure exceeds the
// configured caps. It never upgrades a recommendation.
type Engine struct {
	// MaxAutoDelta is the largest absolute dollar delta a job may carry and
	// still auto-proceed. Above it, proceed becomes proceed_with_flags.
	MaxAutoDelta float64

	// MaxFlaggedShare is the largest share of flagged entities a job may
	// carry without a human look. Above it, any proceed variant becomes
	// review.
	MaxFlaggedShare float64
}

// NewEngine returns an engine with the default caps: $5000 auto-proceed
// exposure, half the entity pool flagged.
func NewEngine() *Engine {
	return &Engine{
		MaxAutoDelta:    5000,
		MaxFlaggedShare: 0.5,
	}
}

// Apply evaluates the report and downgrades its recommendation in place when
// a cap is exceeded. It returns a human-readable detail describing the
// downgrade, or "" when the recommendation stands.
func (e *Engine) Apply(report *domain.AggregateReport) string {
	if report == nil || len(report.Records) == 0 {
		return ""
	}

	flaggedShare := float64(len(report.FlaggedEntities)) / float64(len(report.Records))
	proceeding := report.Recommendation == domain.RecommendProceed ||
		report.Recommendation == domain.RecommendProceedWithFlags

	if proceeding && e.MaxFlaggedShare > 0 && flaggedShare > e.MaxFlaggedShare {
		report.Recommendation = domain.RecommendReview
		return fmt.Sprintf("%.0f%% of entities flagged exceeds the %.0f%% cap; routed to review",
			flaggedShare*100, e.MaxFlaggedShare*100)
	}

	if report.Recommendation == domain.RecommendProceed &&
		e.MaxAutoDelta > 0 && math.Abs(report.TotalDelta) > e.MaxAutoDelta {
		report.Recommendation = domain.RecommendProceedWithFlags
		return fmt.Sprintf("$%.2f total delta exceeds the $%.2f auto-proceed cap",
			math.Abs(report.TotalDelta), e.MaxAutoDelta)
	}

	return ""
}
