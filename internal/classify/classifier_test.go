package classify

import (
	"testing"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

func TestClassifyMatched(t *testing.T) {
	t.Parallel()
	r := Classify(Values{Days: 20, Cost: 10000}, Values{Days: 20, Cost: 10000})
	if r.Status != domain.StatusMatched {
		t.Fatalf("expected matched, got %q", r.Status)
	}
	if r.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", r.Confidence)
	}
	if r.Recipient != "" {
		t.Errorf("matched must not notify anyone, got %q", r.Recipient)
	}
	if len(r.Discrepancies) != 0 {
		t.Errorf("matched must carry no discrepancies, got %d", len(r.Discrepancies))
	}
}

func TestClassifyDaysMismatch(t *testing.T) {
	t.Parallel()
	r := Classify(Values{Days: 20, Cost: 10000}, Values{Days: 18, Cost: 10000})
	if r.Status != domain.StatusDaysMismatch {
		t.Fatalf("expected days_mismatch, got %q", r.Status)
	}
	if r.Recipient != domain.RecipientWorker {
		t.Errorf("days mismatch must notify the worker, got %q", r.Recipient)
	}
	if r.Confidence != 0.3 {
		t.Errorf("expected confidence 0.3, got %f", r.Confidence)
	}
	if len(r.Discrepancies) != 1 || r.Discrepancies[0].Kind != domain.DiscrepancyDays {
		t.Errorf("unexpected discrepancies: %+v", r.Discrepancies)
	}
	if r.Discrepancies[0].Delta != 2 {
		t.Errorf("expected delta 2, got %v", r.Discrepancies[0].Delta)
	}
}

func TestClassifyCostMismatch(t *testing.T) {
	t.Parallel()
	r := Classify(Values{Days: 20, Cost: 10000}, Values{Days: 20, Cost: 9500})
	if r.Status != domain.StatusCostMismatch {
		t.Fatalf("expected cost_mismatch, got %q", r.Status)
	}
	if r.Recipient != domain.RecipientClient {
		t.Errorf("cost mismatch must notify the client, got %q", r.Recipient)
	}
	if r.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %f", r.Confidence)
	}
	if r.Discrepancies[0].Delta != 500 {
		t.Errorf("expected delta 500, got %v", r.Discrepancies[0].Delta)
	}
}

// Both days and cost diverge: the worker wins, the client is never notified.
func TestClassifyBothMismatchPriority(t *testing.T) {
	t.Parallel()
	r := Classify(Values{Days: 20, Cost: 10000}, Values{Days: 18, Cost: 9000})
	if r.Status != domain.StatusDaysMismatch {
		t.Fatalf("expected days_mismatch, got %q", r.Status)
	}
	if r.Recipient != domain.RecipientWorker {
		t.Errorf("combined mismatch must notify the worker only, got %q", r.Recipient)
	}
	if len(r.Discrepancies) != 1 {
		t.Fatalf("expected one combined discrepancy, got %d", len(r.Discrepancies))
	}
	d := r.Discrepancies[0]
	if d.Kind != domain.DiscrepancyBoth {
		t.Errorf("expected kind both, got %q", d.Kind)
	}
	if d.Delta != 1000 {
		t.Errorf("combined discrepancy carries the dollar delta, got %v", d.Delta)
	}
}

func TestClassifyZeroTolerance(t *testing.T) {
	t.Parallel()
	// A one-cent difference is a mismatch. No epsilon.
	r := Classify(Values{Days: 20, Cost: 10000}, Values{Days: 20, Cost: 10000.01})
	if r.Status != domain.StatusCostMismatch {
		t.Errorf("expected cost_mismatch for 1-cent delta, got %q", r.Status)
	}
	r = Classify(Values{Days: 19.5, Cost: 9750}, Values{Days: 19.5, Cost: 9750})
	if r.Status != domain.StatusMatched {
		t.Errorf("expected matched for equal half-days, got %q", r.Status)
	}
}

func TestClassifyDeterminism(t *testing.T) {
	t.Parallel()
	declared := Values{Days: 21, Cost: 11550}
	derived := Values{Days: 20, Cost: 11000}
	first := Classify(declared, derived)
	for range 100 {
		again := Classify(declared, derived)
		if again.Status != first.Status || again.Recipient != first.Recipient {
			t.Fatalf("classification not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	r := NotFound(Values{Days: 20, Cost: 10000})
	if r.Status != domain.StatusEntityNotFound {
		t.Fatalf("expected entity_not_found, got %q", r.Status)
	}
	if r.Confidence != 0.0 {
		t.Errorf("expected confidence 0.0, got %f", r.Confidence)
	}
	if r.Recipient != "" {
		t.Errorf("not_found must not notify, got %q", r.Recipient)
	}
	if r.DaysMatch || r.CostMatch {
		t.Error("no comparison may be attempted for not_found")
	}
}
