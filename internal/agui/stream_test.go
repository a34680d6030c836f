package agui_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceops/reconcile-go/internal/agui"
	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/temporal/activities"
	"github.com/invoiceops/reconcile-go/internal/temporal/querier"
	"github.com/invoiceops/reconcile-go/internal/temporal/workflows"
)

type stubQuerier struct {
	state     *workflows.WorkflowResult
	callCount int
	err       error
}

func (s *stubQuerier) ListWorkflows(_ context.Context, _ querier.ListOptions) ([]querier.WorkflowSummary, error) {
	return nil, nil
}

func (s *stubQuerier) GetWorkflowState(_ context.Context, _ string) (*workflows.WorkflowResult, error) {
	s.callCount++
	return s.state, s.err
}

func (s *stubQuerier) DescribeWorkflow(_ context.Context, _ string) (*querier.WorkflowDescription, error) {
	return nil, nil
}

func (s *stubQuerier) SubmitReview(_ context.Context, _ string, _ activities.ReviewResponse) (string, error) {
	return "", nil
}

func TestStreamHandler_CompletedWorkflow(t *testing.T) {
	q := &stubQuerier{
		state: &workflows.WorkflowResult{
			Job: domain.ReconciliationJob{JobID: "job-1", ProjectRef: "prj-1"},
			Report: &domain.AggregateReport{
				JobID:             "job-1",
				ProjectConfidence: 1.0,
				Recommendation:    domain.RecommendProceed,
			},
			Reason:       workflows.ReasonAutoProceed,
			CurrentPhase: "completed",
		},
	}

	cfg := agui.StreamConfig{PollInterval: 50 * time.Millisecond, MaxDuration: 5 * time.Second}
	handler := agui.StreamHandler(q, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/jobs/{id}/events", handler)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/jobs/wf-1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Read events.
	events := parseSSE(t, resp)
	require.True(t, len(events) >= 3, "expected at least 3 events (RUN_STARTED, STATE_SNAPSHOT, RUN_FINISHED), got %d", len(events))
	assert.Equal(t, "RUN_STARTED", events[0].Type)
	assert.Equal(t, "STATE_SNAPSHOT", events[1].Type)
	assert.Equal(t, "RUN_FINISHED", events[2].Type)
	assert.Contains(t, events[2].Data, "auto_proceed")
}

func TestStreamHandler_ErrorQuerying(t *testing.T) {
	q := &stubQuerier{err: assert.AnError}

	cfg := agui.StreamConfig{PollInterval: 50 * time.Millisecond, MaxDuration: 5 * time.Second}
	handler := agui.StreamHandler(q, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/jobs/{id}/events", handler)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/jobs/wf-1/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	events := parseSSE(t, resp)
	require.True(t, len(events) >= 2)
	assert.Equal(t, "RUN_STARTED", events[0].Type)
	assert.Equal(t, "RUN_ERROR", events[1].Type)
}

type sseEvent struct {
	Type string
	Data string
}

func parseSSE(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var events []sseEvent
	scanner := bufio.NewScanner(resp.Body)
	var current sseEvent
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			current.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			current.Data = strings.TrimPrefix(line, "data: ")
		} else if line == "" && current.Type != "" {
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

func TestEventSerialization(t *testing.T) {
	event := agui.Event{
		Type:       agui.EventRunStarted,
		Timestamp:  time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		WorkflowID: "wf-test",
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "RUN_STARTED", decoded["type"])
	assert.Equal(t, "wf-test", decoded["workflow_id"])
}
