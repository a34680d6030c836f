// Command worker-reconcile runs the Temporal worker for reconciliation
// workflows. Supports stub mode (in-memory CRM) and production mode (Boond).
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/invoiceops/reconcile-go/internal/config"
	"github.com/invoiceops/reconcile-go/internal/connectors/boond"
	"github.com/invoiceops/reconcile-go/internal/coordinator"
	"github.com/invoiceops/reconcile-go/internal/notify"
	"github.com/invoiceops/reconcile-go/internal/observability"
	"github.com/invoiceops/reconcile-go/internal/policy"
	"github.com/invoiceops/reconcile-go/internal/ratelimit"
	"github.com/invoiceops/reconcile-go/internal/reconciler"
	"github.com/invoiceops/reconcile-go/internal/resolver"
	"github.com/invoiceops/reconcile-go/internal/temporal/activities"
	"github.com/invoiceops/reconcile-go/internal/temporal/queues"
	"github.com/invoiceops/reconcile-go/internal/temporal/versioning"
	"github.com/invoiceops/reconcile-go/internal/temporal/workflows"
	"github.com/invoiceops/reconcile-go/internal/testutil"
)

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
		shutdown, err := observability.InitTracer(context.Background(), "recon-worker")
		if err != nil {
			logger.Error("otel init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	var crm resolver.CRMClient
	switch cfg.Mode {
	case config.ModeProduction:
		crm = boond.New(cfg.BoondEndpoint, cfg.BoondToken,
			boond.WithLimiter(ratelimit.NewEndpointLimiter(ratelimit.DefaultEndpointRates())),
			boond.WithBudget(ratelimit.NewLookupBudget(cfg.LookupBudget, time.Hour)),
		)
	default: // stub mode
		stub := testutil.NewStubCRM()
		stub.SeedMatching(10, 20, 500)
		crm = stub
	}

	retry := resolver.RetryPolicy{
		MaxAttempts:     cfg.RetryAttempts,
		InitialInterval: cfg.RetryInterval,
		Multiplier:      2,
		CallTimeout:     10 * time.Second,
	}
	rec := reconciler.New(
		resolver.New(resolver.StandardChain(crm), retry),
		reconciler.WithLogger(logger),
	)

	metrics, err := observability.NewMetrics()
	if err != nil {
		logger.Error("metrics init failed", "error", err)
		os.Exit(1)
	}

	acts := &activities.Activities{
		Coordinator: coordinator.New(rec,
			coordinator.WithConcurrency(cfg.Concurrency),
			coordinator.WithBreakerRate(cfg.BreakerRate),
			coordinator.WithThresholds(cfg.Thresholds),
			coordinator.WithPolicy(policy.NewEngine()),
			coordinator.WithLogger(logger),
		),
		Notifier: notify.LogDispatcher{Logger: logger},
		Metrics:  metrics,
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

	queueNames, err := queues.ParseQueues(os.Getenv("RECON_QUEUES"))
	if err != nil {
		logger.Error("queue config error", "error", err)
		os.Exit(1)
	}
	configs := queues.DefaultConfigs()

	var workers []worker.Worker
	for _, name := range queueNames {
		w := worker.New(c, name, configs[name].Options)
		if name == versioning.QueueReconcile {
			w.RegisterWorkflow(workflows.ReconciliationLifecycleWorkflow)
		}
		w.RegisterActivity(acts)
		workers = append(workers, w)
	}

	logger.Info("starting workers", "queues", queueNames, "mode", cfg.Mode)
	for _, w := range workers[1:] {
		go func(w worker.Worker) {
			if err := w.Run(worker.InterruptCh()); err != nil {
				logger.Error("worker failed", "error", err)
				os.Exit(1)
			}
		}(w)
	}
	if err := workers[0].Run(worker.InterruptCh()); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}
