// Package explain provides optional human-readable annotations for
// discrepancies. Implementations may call an LLM; the engine treats the
// annotation as advisory text that never influences status or confidence.
package explain

import (
	"context"
	"fmt"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

// Explainer produces a short hypothesis for one discrepancy. Errors are
// swallowed by callers: an explanation is enrichment, never a determinant.
type Explainer interface {
	Explain(ctx context.Context, entityRef string, d domain.Discrepancy) (string, error)
}

// Noop returns no annotation. Sufficient for all engine behavior.
type Noop struct{}

func (Noop) Explain(context.Context, string, domain.Discrepancy) (string, error) {
	return "", nil
}

// Templated renders a deterministic one-line annotation without any LLM.
// Useful as a production default when no model is configured.
type Templated struct{}

func (Templated) Explain(_ context.Context, entityRef string, d domain.Discrepancy) (string, error) {
	switch d.Kind {
	case domain.DiscrepancyDays:
		return fmt.Sprintf("%s declared %.2f days but the CRM shows %.2f (delta %.2f)", entityRef, d.Declared, d.Derived, d.Delta), nil
	case domain.DiscrepancyCost:
		return fmt.Sprintf("%s declared cost %.2f but the CRM derives %.2f (delta %.2f)", entityRef, d.Declared, d.Derived, d.Delta), nil
	case domain.DiscrepancyBoth:
		return fmt.Sprintf("%s diverges on both days and cost (delta %.2f)", entityRef, d.Delta), nil
	case domain.DiscrepancyEntityNotFound:
		return fmt.Sprintf("%s has no CRM record for this project and period", entityRef), nil
	}
	return "", nil
}

// Annotate fills each discrepancy's Explanation in place using the given
// explainer. A nil explainer or any per-discrepancy error leaves the
// discrepancy untouched.
func Annotate(ctx context.Context, ex Explainer, entityRef string, ds []domain.Discrepancy) {
	if ex == nil {
		return
	}
	for i := range ds {
		text, err := ex.Explain(ctx, entityRef, ds[i])
		if err != nil || text == "" {
			continue
		}
		ds[i].Explanation = text
	}
}
