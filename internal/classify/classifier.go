// Package classify implements the deterministic discrepancy classifier.
// It is a pure function over a declared/derived value pair: no I/O, no
// clock, no randomness. LLMs are never in this path.
package classify

import "github.com/invoiceops/reconcile-go/internal/domain"

// Values is one side of the comparison.
type Values struct {
	Days float64
	Cost float64
}

// Result is the classification outcome for one entity.
type Result struct {
	Status        domain.RecordStatus
	DaysMatch     bool
	CostMatch     bool
	Confidence    float64
	Discrepancies []domain.Discrepancy

	// Recipient is the single notification target, empty for matched.
	Recipient domain.RecipientKind
}

// Classify compares declared against derived values under zero tolerance
// and returns the status, discrepancies, and notification target.
//
// Priority order:
//  1. Both match → matched, no notification.
//  2. Days mismatch (regardless of cost) → days_mismatch, notify the worker.
//  3. Days match, cost mismatch → cost_mismatch, notify the client.
//
// Rule 2 wins over rule 3: a combined mismatch is treated as a worker-side
// data issue and the client is not notified.
func Classify(declared, derived Values) Result {
	// Zero tolerance: exact equality, no epsilon, no rounding.
	daysMatch := declared.Days == derived.Days
	costMatch := declared.Cost == derived.Cost

	r := Result{DaysMatch: daysMatch, CostMatch: costMatch}

	switch {
	case daysMatch && costMatch:
		r.Status = domain.StatusMatched
	case !daysMatch && !costMatch:
		// Combined divergence: one discrepancy of kind "both", carrying
		// the dollar axis (day values live on the record itself).
		r.Status = domain.StatusDaysMismatch
		r.Recipient = domain.RecipientWorker
		r.Discrepancies = append(r.Discrepancies, costDiscrepancy(declared, derived, domain.DiscrepancyBoth))
	case !daysMatch:
		r.Status = domain.StatusDaysMismatch
		r.Recipient = domain.RecipientWorker
		r.Discrepancies = append(r.Discrepancies, domain.Discrepancy{
			Kind:     domain.DiscrepancyDays,
			Declared: declared.Days,
			Derived:  derived.Days,
			Delta:    declared.Days - derived.Days,
		})
	default: // days match, cost doesn't
		r.Status = domain.StatusCostMismatch
		r.Recipient = domain.RecipientClient
		r.Discrepancies = append(r.Discrepancies, costDiscrepancy(declared, derived, domain.DiscrepancyCost))
	}

	r.Confidence = domain.Confidence[r.Status]
	return r
}

// NotFound classifies an entity the CRM could not resolve. No comparison is
// attempted and no notification is emitted.
func NotFound(declared Values) Result {
	return Result{
		Status:     domain.StatusEntityNotFound,
		Confidence: domain.Confidence[domain.StatusEntityNotFound],
		Discrepancies: []domain.Discrepancy{{
			Kind:     domain.DiscrepancyEntityNotFound,
			Declared: declared.Cost,
		}},
	}
}

func costDiscrepancy(declared, derived Values, kind domain.DiscrepancyKind) domain.Discrepancy {
	return domain.Discrepancy{
		Kind:     kind,
		Declared: declared.Cost,
		Derived:  derived.Cost,
		Delta:    declared.Cost - derived.Cost,
	}
}
