package api

import (
	"encoding/json"
	"net/http"

	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/temporal/activities"
	"github.com/invoiceops/reconcile-go/internal/temporal/querier"
	"github.com/invoiceops/reconcile-go/internal/temporal/versioning"
	"github.com/invoiceops/reconcile-go/internal/uischema"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.starter == nil {
		writeError(w, http.StatusServiceUnavailable, "job submission is not enabled")
		return
	}

	var body struct {
		ProjectRef string                  `json:"project_ref"`
		Period     domain.Period           `json:"period"`
		Entities   []domain.DeclaredEntity `json:"entities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job := domain.NewReconciliationJob(body.ProjectRef, body.Period, body.Entities)
	if err := domain.ValidateJob(job); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	workflowID, err := s.starter.StartReconciliation(r.Context(), job)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"workflow_id": workflowID,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	opts := querier.ListOptions{
		TaskQueue: versioning.QueueReconcile,
	}
	if status := r.URL.Query().Get("status"); status != "" {
		opts.StatusFilter = status
	}

	jobs, err := s.querier.ListWorkflows(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "workflow id required")
		return
	}

	result, err := s.querier.GetWorkflowState(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "workflow id required")
		return
	}

	result, err := s.querier.GetWorkflowState(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Report == nil {
		writeError(w, http.StatusNotFound, "report not available yet")
		return
	}
	writeJSON(w, http.StatusOK, result.Report)
}

func (s *Server) handleGetJobUI(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "workflow id required")
		return
	}

	result, err := s.querier.GetWorkflowState(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	schema := uischema.Build(result.CurrentPhase, result.Job, result.Report)
	writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "workflow id required")
		return
	}

	var body struct {
		Action          string                  `json:"action"`
		By              string                  `json:"by"`
		Reason          string                  `json:"reason,omitempty"`
		UpdatedEntities []domain.DeclaredEntity `json:"updated_entities,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp := activities.ReviewResponse{
		Action:          domain.ReviewAction(body.Action),
		By:              body.By,
		Reason:          body.Reason,
		UpdatedEntities: body.UpdatedEntities,
	}
	if err := domain.ValidateReviewDecision(resp.Decision()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.querier.SubmitReview(r.Context(), id, resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}
