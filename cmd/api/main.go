// Command api runs the HTTP API server for the reconciliation engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.temporal.io/sdk/client"

	"github.com/invoiceops/reconcile-go/internal/api"
	"github.com/invoiceops/reconcile-go/internal/config"
	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/observability"
	"github.com/invoiceops/reconcile-go/internal/temporal/querier"
	"github.com/invoiceops/reconcile-go/internal/temporal/versioning"
	"github.com/invoiceops/reconcile-go/internal/temporal/workflows"
)

// temporalStarter starts reconciliation workflows on the reconcile queue.
type temporalStarter struct {
	client client.Client
	cfg    config.Config
}

func (s *temporalStarter) StartReconciliation(ctx context.Context, job domain.ReconciliationJob) (string, error) {
	wfID := fmt.Sprintf("recon-job-%s", job.JobID)
	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        wfID,
		TaskQueue: versioning.QueueReconcile,
	}, workflows.ReconciliationLifecycleWorkflow, workflows.WorkflowInput{
		Job:           job,
		ReviewTimeout: s.cfg.ReviewTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("start workflow: %w", err)
	}
	return run.GetID(), nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := observability.InitLogger(cfg.LogLevel)
	temporalLogger := observability.NewTemporalSlogAdapter(logger)

	if cfg.OTelEnabled {
		shutdown, err := observability.InitTracer(context.Background(), "recon-api")
		if err != nil {
			logger.Error("otel init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
		Logger:    temporalLogger,
	})
	if err != nil {
		logger.Error("unable to create Temporal client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	q := querier.New(c)
	starter := &temporalStarter{client: c, cfg: cfg}

	oidcCfg := api.OIDCConfig{
		IssuerURL: cfg.OIDCIssuer,
		Audience:  cfg.OIDCAudience,
		Enabled:   cfg.OIDCEnabled(),
	}
	srv, err := api.New(q, starter, cfg.CORSOrigins, oidcCfg)
	if err != nil {
		logger.Error("server init failed", "error", err)
		os.Exit(1)
	}

	var handler http.Handler = srv
	if cfg.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "recon-api")
	}

	addr := ":" + cfg.APIPort
	logger.Info("starting API server", "addr", addr, "oidc_enabled", oidcCfg.Enabled)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
