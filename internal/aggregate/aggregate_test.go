package aggregate

import (
	"fmt"
	"math"
	"testing"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

func testJob() domain.ReconciliationJob {
	return domain.ReconciliationJob{
		JobID:      "job-1",
		ProjectRef: "prj-1",
		Period:     domain.Period{Start: "2026-07-01", End: "2026-07-31"},
	}
}

func record(ref string, status domain.RecordStatus, declCost, crmCost float64) domain.WorkerRecord {
	return domain.WorkerRecord{
		ExternalRef:  ref,
		Status:       status,
		Confidence:   domain.Confidence[status],
		DeclaredCost: declCost,
		CRMCost:      crmCost,
		DaysMatch:    status == domain.StatusMatched || status == domain.StatusCostMismatch,
		CostMatch:    status == domain.StatusMatched || status == domain.StatusDaysMismatch,
	}
}

func TestThresholdsValidate(t *testing.T) {
	t.Parallel()
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds must validate: %v", err)
	}
	bad := []Thresholds{
		{Auto: 0, Review: 0.85, Reject: 0.70},
		{Auto: 1.1, Review: 0.85, Reject: 0.70},
		{Auto: 0.8, Review: 0.85, Reject: 0.70}, // auto < review
		{Auto: 1.0, Review: 0.6, Reject: 0.70},  // review < reject
	}
	for i, th := range bad {
		if err := th.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, th)
		}
	}
}

func TestRecommendBands(t *testing.T) {
	t.Parallel()
	th := DefaultThresholds()
	cases := []struct {
		confidence float64
		want       domain.Recommendation
	}{
		{1.0, domain.RecommendProceed},
		{0.99, domain.RecommendProceedWithFlags},
		{0.85, domain.RecommendProceedWithFlags},
		{0.84, domain.RecommendReview},
		{0.70, domain.RecommendReview},
		{0.69, domain.RecommendReject},
		{0.0, domain.RecommendReject},
	}
	for _, c := range cases {
		if got := th.Recommend(c.confidence); got != c.want {
			t.Errorf("Recommend(%v) = %q, want %q", c.confidence, got, c.want)
		}
	}
}

func TestBuildReportAllMatched(t *testing.T) {
	t.Parallel()
	records := []domain.WorkerRecord{
		record("w-1", domain.StatusMatched, 10000, 10000),
		record("w-2", domain.StatusMatched, 9000, 9000),
	}
	report := BuildReport(testJob(), records, DefaultThresholds())

	if report.ProjectConfidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", report.ProjectConfidence)
	}
	if report.Recommendation != domain.RecommendProceed {
		t.Errorf("expected proceed, got %q", report.Recommendation)
	}
	if report.TotalDelta != 0 {
		t.Errorf("expected zero delta, got %v", report.TotalDelta)
	}
	if len(report.FlaggedEntities) != 0 {
		t.Errorf("fully matched job must flag nothing, got %v", report.FlaggedEntities)
	}
	if report.GeneratedAt == "" {
		t.Error("report must carry a generation timestamp")
	}
}

// 48 matched plus 2 days mismatches over 50 records gives a mean of
// (48 + 2*0.3)/50 = 0.972, which lands in the proceed_with_flags band.
func TestBuildReportMostlyMatched(t *testing.T) {
	t.Parallel()
	records := make([]domain.WorkerRecord, 0, 50)
	for i := 0; i < 48; i++ {
		records = append(records, record(fmt.Sprintf("w-%d", i), domain.StatusMatched, 10000, 10000))
	}
	records = append(records,
		record("w-48", domain.StatusDaysMismatch, 10000, 9500),
		record("w-49", domain.StatusDaysMismatch, 10000, 9500),
	)

	report := BuildReport(testJob(), records, DefaultThresholds())

	if math.Abs(report.ProjectConfidence-0.972) > 1e-9 {
		t.Fatalf("expected confidence 0.972, got %v", report.ProjectConfidence)
	}
	if report.Recommendation != domain.RecommendProceedWithFlags {
		t.Errorf("expected proceed_with_flags, got %q", report.Recommendation)
	}
	if got := report.StatusCounts[domain.StatusMatched]; got != 48 {
		t.Errorf("expected 48 matched, got %d", got)
	}
	if got := report.StatusCounts[domain.StatusDaysMismatch]; got != 2 {
		t.Errorf("expected 2 days_mismatch, got %d", got)
	}
	if len(report.FlaggedEntities) != 2 {
		t.Errorf("expected 2 flagged entities, got %v", report.FlaggedEntities)
	}
	if report.TotalDelta != 1000 {
		t.Errorf("expected total delta 1000, got %v", report.TotalDelta)
	}
}

func TestBuildReportCountsEveryRecord(t *testing.T) {
	t.Parallel()
	records := []domain.WorkerRecord{
		record("w-1", domain.StatusMatched, 10000, 10000),
		record("w-2", domain.StatusCostMismatch, 10000, 9500),
		record("w-3", domain.StatusEntityNotFound, 8000, 0),
		{ExternalRef: "w-4", Status: domain.StatusFailed, FailureReason: domain.FailureChainError, DeclaredCost: 7000},
	}
	report := BuildReport(testJob(), records, DefaultThresholds())

	var total int
	for _, n := range report.StatusCounts {
		total += n
	}
	if total != len(records) {
		t.Fatalf("status counts sum to %d, want %d", total, len(records))
	}

	// Mean over all four: (1 + 0.5 + 0 + 0) / 4.
	if math.Abs(report.ProjectConfidence-0.375) > 1e-9 {
		t.Errorf("expected confidence 0.375, got %v", report.ProjectConfidence)
	}
	if report.Recommendation != domain.RecommendReject {
		t.Errorf("expected reject, got %q", report.Recommendation)
	}
}

func TestBuildReportDollarDelta(t *testing.T) {
	t.Parallel()
	records := []domain.WorkerRecord{
		// Compared: contributes declared minus derived.
		record("w-1", domain.StatusCostMismatch, 10000, 9400),
		// Not found: the whole declared cost is unverified exposure.
		record("w-2", domain.StatusEntityNotFound, 8000, 0),
		// Failed: exposure unknown, contributes nothing.
		{ExternalRef: "w-3", Status: domain.StatusFailed, FailureReason: domain.FailureChainError, DeclaredCost: 7000},
	}
	report := BuildReport(testJob(), records, DefaultThresholds())
	if report.TotalDelta != 8600 {
		t.Fatalf("expected total delta 8600, got %v", report.TotalDelta)
	}
}

func TestBuildReportPreservesOrder(t *testing.T) {
	t.Parallel()
	records := []domain.WorkerRecord{
		record("w-c", domain.StatusMatched, 1, 1),
		record("w-a", domain.StatusCostMismatch, 2, 1),
		record("w-b", domain.StatusMatched, 3, 3),
	}
	report := BuildReport(testJob(), records, DefaultThresholds())
	want := []string{"w-c", "w-a", "w-b"}
	for i, ref := range want {
		if report.Records[i].ExternalRef != ref {
			t.Fatalf("record %d: got %q, want %q (submission order must be kept)",
				i, report.Records[i].ExternalRef, ref)
		}
	}
}

func TestBuildReportEmptyJob(t *testing.T) {
	t.Parallel()
	report := BuildReport(testJob(), nil, DefaultThresholds())
	if report.ProjectConfidence != 0 {
		t.Errorf("empty job: expected confidence 0, got %v", report.ProjectConfidence)
	}
	if report.Recommendation != domain.RecommendReject {
		t.Errorf("empty job: expected reject, got %q", report.Recommendation)
	}
}

func TestBuildReportSurfacesPatterns(t *testing.T) {
	t.Parallel()
	records := []domain.WorkerRecord{
		record("w-1", domain.StatusEntityNotFound, 8000, 0),
		record("w-2", domain.StatusEntityNotFound, 8000, 0),
	}
	report := BuildReport(testJob(), records, DefaultThresholds())
	if len(report.Patterns) == 0 {
		t.Fatal("expected the missing-entities cluster to surface as a pattern")
	}
}
