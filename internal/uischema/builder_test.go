package uischema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/uischema"
)

func baseJob() domain.ReconciliationJob {
	return domain.ReconciliationJob{
		JobID:      "job-1",
		ProjectRef: "prj-1",
		Period:     domain.Period{Start: "2026-07-01", End: "2026-07-31"},
		Entities: []domain.DeclaredEntity{
			{ExternalRef: "w-1", DeclaredDays: 20, DeclaredCost: 10000},
			{ExternalRef: "w-2", DeclaredDays: 18, DeclaredCost: 9000},
		},
	}
}

func cleanReport() *domain.AggregateReport {
	return &domain.AggregateReport{
		JobID:      "job-1",
		ProjectRef: "prj-1",
		Records: []domain.WorkerRecord{
			{ExternalRef: "w-1", Status: domain.StatusMatched, Confidence: 1.0},
			{ExternalRef: "w-2", Status: domain.StatusMatched, Confidence: 1.0},
		},
		StatusCounts:      map[domain.RecordStatus]int{domain.StatusMatched: 2},
		ProjectConfidence: 1.0,
		Recommendation:    domain.RecommendProceed,
	}
}

func componentTypes(schema uischema.UISchema) []uischema.ComponentType {
	types := make([]uischema.ComponentType, len(schema.Components))
	for i, c := range schema.Components {
		types[i] = c.Type
	}
	return types
}

func TestBuild_NoReport_OnlySummary(t *testing.T) {
	schema := uischema.Build("reconciling", baseJob(), nil)

	assert.Equal(t, "v1", schema.Version)
	assert.Equal(t, "job-1", schema.JobID)
	assert.Equal(t, "reconciling", schema.Phase)
	require.Len(t, schema.Components, 1)
	assert.Equal(t, uischema.ComponentJobSummary, schema.Components[0].Type)
	assert.Empty(t, schema.Actions)
}

func TestBuild_CleanJob_NoDiscrepancyTable(t *testing.T) {
	schema := uischema.Build("completed", baseJob(), cleanReport())

	types := componentTypes(schema)
	assert.Contains(t, types, uischema.ComponentDecisionBanner)
	assert.NotContains(t, types, uischema.ComponentDiscrepancyTable)
	assert.NotContains(t, types, uischema.ComponentFailurePanel)
	assert.Empty(t, schema.Actions)
}

func TestBuild_Mismatches_ShowDiscrepancyTable(t *testing.T) {
	report := cleanReport()
	report.Records[1] = domain.WorkerRecord{
		ExternalRef:  "w-2",
		Status:       domain.StatusCostMismatch,
		DeclaredCost: 9000,
		CRMCost:      8000,
		Confidence:   0.5,
		Discrepancies: []domain.Discrepancy{
			{Kind: domain.DiscrepancyCost, Declared: 9000, Derived: 8000, Delta: 1000, Explanation: "billed above the contracted rate"},
		},
	}
	report.StatusCounts = map[domain.RecordStatus]int{
		domain.StatusMatched:      1,
		domain.StatusCostMismatch: 1,
	}
	report.FlaggedEntities = []string{"w-2"}
	report.ProjectConfidence = 0.75
	report.Recommendation = domain.RecommendReview

	schema := uischema.Build("completed", baseJob(), report)

	var table *uischema.Component
	for i := range schema.Components {
		if schema.Components[i].Type == uischema.ComponentDiscrepancyTable {
			table = &schema.Components[i]
		}
	}
	require.NotNil(t, table)
	rows := table.Data["rows"].([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "w-2", rows[0]["external_ref"])
	assert.Equal(t, []string{"billed above the contracted rate"}, rows[0]["explanations"])
}

func TestBuild_Failures_ShowFailurePanel(t *testing.T) {
	report := cleanReport()
	report.Records[1] = domain.WorkerRecord{
		ExternalRef:   "w-2",
		Status:        domain.StatusFailed,
		FailureReason: domain.FailureChainError,
		Error:         "crm timeout",
	}
	report.StatusCounts = map[domain.RecordStatus]int{
		domain.StatusMatched: 1,
		domain.StatusFailed:  1,
	}

	schema := uischema.Build("completed", baseJob(), report)
	assert.Contains(t, componentTypes(schema), uischema.ComponentFailurePanel)
}

func TestBuild_Patterns_ShowPatternPanel(t *testing.T) {
	report := cleanReport()
	report.Patterns = []domain.Pattern{
		{Description: "uniform day delta", AffectedEntities: []string{"w-1", "w-2"}},
	}

	schema := uischema.Build("completed", baseJob(), report)
	assert.Contains(t, componentTypes(schema), uischema.ComponentPatternPanel)
}

func TestBuild_AwaitingReview_ActionsPresent(t *testing.T) {
	report := cleanReport()
	report.ProjectConfidence = 0.75
	report.Recommendation = domain.RecommendReview

	schema := uischema.Build("awaiting_review", baseJob(), report)

	assert.Contains(t, componentTypes(schema), uischema.ComponentReviewQueue)
	require.Len(t, schema.Actions, 3)
	assert.Equal(t, uischema.ActionAccept, schema.Actions[0].Type)
	assert.Nil(t, schema.Actions[0].Confirm)
	assert.Equal(t, uischema.ActionCorrect, schema.Actions[1].Type)
	assert.Equal(t, uischema.ActionCancel, schema.Actions[2].Type)
}

func TestBuild_RejectRecommendation_AcceptNeedsConfirm(t *testing.T) {
	report := cleanReport()
	report.ProjectConfidence = 0.4
	report.Recommendation = domain.RecommendReject

	schema := uischema.Build("awaiting_review", baseJob(), report)

	require.NotEmpty(t, schema.Actions)
	require.NotNil(t, schema.Actions[0].Confirm)
	assert.True(t, schema.Actions[0].Confirm.Required)
}

func TestBuild_LookupTraceCollapsed(t *testing.T) {
	report := cleanReport()
	report.Records[0].Trace = []domain.LookupStep{
		{Name: "resolve_entity", Attempts: 1},
	}

	schema := uischema.Build("completed", baseJob(), report)

	var trace *uischema.Component
	for i := range schema.Components {
		if schema.Components[i].Type == uischema.ComponentLookupTrace {
			trace = &schema.Components[i]
		}
	}
	require.NotNil(t, trace)
	assert.Equal(t, uischema.VisibilityCollapsed, trace.Visibility)
}
