// Package api is the HTTP surface for submitting reconciliation jobs and
// resolving reviews.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/invoiceops/reconcile-go/internal/agui"
	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/temporal/querier"
)

// JobStarter launches reconciliation workflows. Implemented against the
// Temporal client in cmd/api; stubbed in tests.
type JobStarter interface {
	StartReconciliation(ctx context.Context, job domain.ReconciliationJob) (workflowID string, err error)
}

// Server is the HTTP API server for the reconciliation engine.
type Server struct {
	querier querier.WorkflowQuerier
	starter JobStarter
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a Server with the given collaborators, CORS origins, and
// optional OIDC auth.
func New(q querier.WorkflowQuerier, starter JobStarter, corsOrigins []string, authCfg OIDCConfig) (*Server, error) {
	s := &Server{querier: q, starter: starter, mux: http.NewServeMux()}
	s.routes()

	var handler http.Handler = s.mux
	if authCfg.Enabled {
		provider, err := oidc.NewProvider(context.Background(), authCfg.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("api: oidc discovery: %w", err)
		}
		handler = oidcAuth(provider, authCfg.Audience)(handler)
	}
	s.handler = requestID(logging(cors(corsOrigins, handler)))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/jobs", s.handleSubmitJob)
	s.mux.HandleFunc("GET /api/v1/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("GET /api/v1/jobs/{id}/report", s.handleGetReport)
	s.mux.HandleFunc("GET /api/v1/jobs/{id}/ui", s.handleGetJobUI)
	s.mux.HandleFunc("GET /api/v1/jobs/{id}/events", agui.StreamHandler(s.querier, agui.DefaultConfig()))
	s.mux.HandleFunc("POST /api/v1/jobs/{id}/review", s.handleReview)
}
