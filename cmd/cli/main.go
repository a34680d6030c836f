// Command recon is a CLI tool for submitting and managing reconciliation jobs.
//
// Usage:
//
//	recon submit  --file job.json
//	recon run     --file job.json          (in-process, no Temporal)
//	recon status  --workflow-id WID
//	recon accept  --workflow-id WID --by USER
//	recon cancel  --workflow-id WID --by USER --reason R
//	recon correct --workflow-id WID --by USER --file entities.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"

	"github.com/invoiceops/reconcile-go/internal/config"
	"github.com/invoiceops/reconcile-go/internal/connectors/boond"
	"github.com/invoiceops/reconcile-go/internal/coordinator"
	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/policy"
	"github.com/invoiceops/reconcile-go/internal/reconciler"
	"github.com/invoiceops/reconcile-go/internal/resolver"
	"github.com/invoiceops/reconcile-go/internal/temporal/activities"
	"github.com/invoiceops/reconcile-go/internal/temporal/versioning"
	"github.com/invoiceops/reconcile-go/internal/temporal/workflows"
	"github.com/invoiceops/reconcile-go/internal/testutil"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "submit":
		cmdSubmit(os.Args[2:])
	case "run":
		cmdRun(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "accept":
		cmdAccept(os.Args[2:])
	case "cancel":
		cmdCancel(os.Args[2:])
	case "correct":
		cmdCorrect(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: recon <submit|run|status|accept|cancel|correct> [flags]")
	os.Exit(1)
}

func dial() client.Client {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("unable to create Temporal client: %v", err)
	}
	return c
}

// jobFile is the on-disk submission format.
type jobFile struct {
	ProjectRef string                  `json:"project_ref"`
	Period     domain.Period           `json:"period"`
	Entities   []domain.DeclaredEntity `json:"entities"`
}

func loadJob(path string) domain.ReconciliationJob {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read job file: %v", err)
	}
	var jf jobFile
	if err := json.Unmarshal(data, &jf); err != nil {
		log.Fatalf("parse job file: %v", err)
	}
	job := domain.NewReconciliationJob(jf.ProjectRef, jf.Period, jf.Entities)
	if err := domain.ValidateJob(job); err != nil {
		log.Fatalf("invalid job: %v", err)
	}
	return job
}

func cmdSubmit(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	file := fs.String("file", "", "job JSON file (required)")
	_ = fs.Parse(args)

	if *file == "" {
		fs.Usage()
		os.Exit(1)
	}

	job := loadJob(*file)
	c := dial()
	defer c.Close()

	wfID := fmt.Sprintf("recon-job-%s", job.JobID)
	run, err := c.ExecuteWorkflow(context.Background(), client.StartWorkflowOptions{
		ID:        wfID,
		TaskQueue: versioning.QueueReconcile,
	}, workflows.ReconciliationLifecycleWorkflow, workflows.WorkflowInput{Job: job})
	if err != nil {
		log.Fatalf("failed to start workflow: %v", err)
	}
	fmt.Printf("started workflow %s (run=%s)\n", run.GetID(), run.GetRunID())
}

// cmdRun reconciles a job in-process, without Temporal. Useful for trying
// the engine against the stub CRM or a real Boond endpoint.
func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	file := fs.String("file", "", "job JSON file (required)")
	_ = fs.Parse(args)

	if *file == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var crm resolver.CRMClient
	if cfg.Mode == config.ModeProduction {
		crm = boond.New(cfg.BoondEndpoint, cfg.BoondToken)
	} else {
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
	coord := coordinator.New(
		reconciler.New(resolver.New(resolver.StandardChain(crm), retry)),
		coordinator.WithConcurrency(cfg.Concurrency),
		coordinator.WithBreakerRate(cfg.BreakerRate),
		coordinator.WithThresholds(cfg.Thresholds),
		coordinator.WithPolicy(policy.NewEngine()),
	)

	job := loadJob(*file)
	report, err := coord.Run(context.Background(), job)
	if err != nil {
		log.Fatalf("reconcile: %v", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("marshal report: %v", err)
	}
	fmt.Println(string(data))
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	wfID := fs.String("workflow-id", "", "workflow ID (required)")
	_ = fs.Parse(args)

	if *wfID == "" {
		fs.Usage()
		os.Exit(1)
	}

	c := dial()
	defer c.Close()

	desc, err := c.DescribeWorkflowExecution(context.Background(), *wfID, "")
	if err != nil {
		log.Fatalf("failed to describe workflow: %v", err)
	}

	data, err := json.MarshalIndent(map[string]any{
		"workflow_id": *wfID,
		"status":      desc.WorkflowExecutionInfo.Status.String(),
		"start_time":  desc.WorkflowExecutionInfo.StartTime,
		"close_time":  desc.WorkflowExecutionInfo.CloseTime,
	}, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal status: %v", err)
	}
	fmt.Println(string(data))
}

func cmdAccept(args []string) {
	fs := flag.NewFlagSet("accept", flag.ExitOnError)
	wfID := fs.String("workflow-id", "", "workflow ID (required)")
	by := fs.String("by", "", "reviewer identity (required)")
	reason := fs.String("reason", "", "acceptance note")
	_ = fs.Parse(args)

	if *wfID == "" || *by == "" {
		fs.Usage()
		os.Exit(1)
	}

	sendReview(*wfID, activities.ReviewResponse{Action: domain.ReviewAccept, By: *by, Reason: *reason})
}

func cmdCancel(args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	wfID := fs.String("workflow-id", "", "workflow ID (required)")
	by := fs.String("by", "", "reviewer identity (required)")
	reason := fs.String("reason", "", "cancellation reason")
	_ = fs.Parse(args)

	if *wfID == "" || *by == "" {
		fs.Usage()
		os.Exit(1)
	}

	sendReview(*wfID, activities.ReviewResponse{Action: domain.ReviewCancel, By: *by, Reason: *reason})
}

func cmdCorrect(args []string) {
	fs := flag.NewFlagSet("correct", flag.ExitOnError)
	wfID := fs.String("workflow-id", "", "workflow ID (required)")
	by := fs.String("by", "", "reviewer identity (required)")
	file := fs.String("file", "", "corrected entities JSON file (required)")
	_ = fs.Parse(args)

	if *wfID == "" || *by == "" || *file == "" {
		fs.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read entities file: %v", err)
	}
	var entities []domain.DeclaredEntity
	if err := json.Unmarshal(data, &entities); err != nil {
		log.Fatalf("parse entities file: %v", err)
	}

	sendReview(*wfID, activities.ReviewResponse{
		Action:          domain.ReviewCorrect,
		By:              *by,
		UpdatedEntities: entities,
	})
}

func sendReview(wfID string, resp activities.ReviewResponse) {
	c := dial()
	defer c.Close()

	handle, err := c.UpdateWorkflow(context.Background(), client.UpdateWorkflowOptions{
		WorkflowID:   wfID,
		UpdateName:   workflows.UpdateNameReview,
		Args:         []any{resp},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		log.Fatalf("failed to send update: %v", err)
	}

	var result string
	if err := handle.Get(context.Background(), &result); err != nil {
		log.Fatalf("update failed: %v", err)
	}
	fmt.Printf("update result: %s\n", result)
}
