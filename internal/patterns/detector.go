// Package patterns performs post-hoc analysis over a job's full result set
// to distinguish systematic discrepancies from independent ones. Output is
// purely advisory: no entity status or confidence is ever altered.
package patterns

import (
	"fmt"
	"math"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

// minAffected is the smallest group that counts as a pattern. A single
// divergent entity is noise, not a shape.
const minAffected = 2

// Detect inspects terminal records and returns the shared discrepancy
// shapes it finds. An empty result means the non-matching entities look
// independent/random.
func Detect(records []domain.WorkerRecord) []domain.Pattern {
	var out []domain.Pattern

	if p, ok := uniformDaysDelta(records); ok {
		out = append(out, p)
	}
	if p, ok := uniformCostDelta(records); ok {
		out = append(out, p)
	}
	if p, ok := proportionalCostShift(records); ok {
		out = append(out, p)
	}
	if p, ok := missingEntities(records); ok {
		out = append(out, p)
	}
	if p, ok := sharedFailures(records); ok {
		out = append(out, p)
	}

	return out
}

// compared reports whether both sides of the record were actually derived,
// so its day/cost fields are meaningful for delta analysis.
func compared(rec domain.WorkerRecord) bool {
	switch rec.Status {
	case domain.StatusMatched, domain.StatusDaysMismatch, domain.StatusCostMismatch:
		return true
	}
	return false
}

// uniformDaysDelta finds entities sharing an identical declared-minus-derived
// day delta, the signature of a systematic calendar or unit convention
// difference rather than independent data-entry errors.
func uniformDaysDelta(records []domain.WorkerRecord) (domain.Pattern, bool) {
	byDelta := make(map[float64][]string)
	for _, rec := range records {
		if !compared(rec) || rec.DaysMatch {
			continue
		}
		delta := rec.DeclaredDays - rec.CRMDays
		byDelta[delta] = append(byDelta[delta], rec.ExternalRef)
	}
	delta, refs := largestGroup(byDelta)
	if len(refs) < minAffected {
		return domain.Pattern{}, false
	}
	return domain.Pattern{
		Description: fmt.Sprintf(
			"%d entities share an identical days delta of %+.2f; likely a systematic rounding or calendar-convention difference",
			len(refs), delta),
		AffectedEntities: refs,
	}, true
}

// uniformCostDelta finds entities sharing an identical dollar delta.
func uniformCostDelta(records []domain.WorkerRecord) (domain.Pattern, bool) {
	byDelta := make(map[float64][]string)
	for _, rec := range records {
		if !compared(rec) || rec.CostMatch {
			continue
		}
		delta := rec.DeclaredCost - rec.CRMCost
		byDelta[delta] = append(byDelta[delta], rec.ExternalRef)
	}
	delta, refs := largestGroup(byDelta)
	if len(refs) < minAffected {
		return domain.Pattern{}, false
	}
	return domain.Pattern{
		Description: fmt.Sprintf(
			"%d entities share an identical cost delta of %+.2f; likely a systematic fee or adjustment applied to each line",
			len(refs), delta),
		AffectedEntities: refs,
	}, true
}

// proportionalCostShift finds cost mismatches sharing the same
// declared/derived ratio, suggesting a rate card or currency difference.
func proportionalCostShift(records []domain.WorkerRecord) (domain.Pattern, bool) {
	byRatio := make(map[float64][]string)
	for _, rec := range records {
		if !compared(rec) || rec.CostMatch || rec.CRMCost == 0 {
			continue
		}
		ratio := math.Round(rec.DeclaredCost/rec.CRMCost*1000) / 1000
		if ratio == 1 {
			continue
		}
		byRatio[ratio] = append(byRatio[ratio], rec.ExternalRef)
	}
	ratio, refs := largestGroup(byRatio)
	if len(refs) < minAffected {
		return domain.Pattern{}, false
	}
	return domain.Pattern{
		Description: fmt.Sprintf(
			"%d entities show the same declared/derived cost ratio of %.3f; likely a rate card or currency-conversion difference",
			len(refs), ratio),
		AffectedEntities: refs,
	}, true
}

// missingEntities groups not-found entities: several at once suggests a
// wrong project reference or period rather than individual missing records.
func missingEntities(records []domain.WorkerRecord) (domain.Pattern, bool) {
	var refs []string
	for _, rec := range records {
		if rec.Status == domain.StatusEntityNotFound {
			refs = append(refs, rec.ExternalRef)
		}
	}
	if len(refs) < minAffected {
		return domain.Pattern{}, false
	}
	return domain.Pattern{
		Description: fmt.Sprintf(
			"%d entities are absent from the CRM; the submission may reference the wrong project or period",
			len(refs)),
		AffectedEntities: refs,
	}, true
}

// sharedFailures groups failed entities by failure reason.
func sharedFailures(records []domain.WorkerRecord) (domain.Pattern, bool) {
	byReason := make(map[domain.FailureReason][]string)
	for _, rec := range records {
		if rec.Status == domain.StatusFailed {
			byReason[rec.FailureReason] = append(byReason[rec.FailureReason], rec.ExternalRef)
		}
	}

	var bestReason domain.FailureReason
	var best []string
	for reason, refs := range byReason {
		if len(refs) > len(best) {
			bestReason, best = reason, refs
		}
	}
	if len(best) < minAffected {
		return domain.Pattern{}, false
	}
	return domain.Pattern{
		Description: fmt.Sprintf(
			"%d entities failed with reason %q; points at a shared infrastructure fault, not entity data",
			len(best), bestReason),
		AffectedEntities: best,
	}, true
}

// largestGroup returns the key and members of the biggest bucket.
func largestGroup[K comparable](groups map[K][]string) (K, []string) {
	var bestKey K
	var best []string
	for key, refs := range groups {
		if len(refs) > len(best) {
			bestKey, best = key, refs
		}
	}
	return bestKey, best
}
