// Package workflows defines the Temporal workflow functions.
package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/invoiceops/reconcile-go/internal/coordinator"
	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/temporal/activities"
)

// UpdateNameReview is the Temporal Update handler name for human review.
const UpdateNameReview = "review"

// QueryNameState is the Temporal Query handler name for reading workflow state.
const QueryNameState = "state"

// DefaultReviewTimeout is how long the workflow waits for a human decision.
const DefaultReviewTimeout = 72 * time.Hour

// TerminationReason describes why the workflow ended.
type TerminationReason string

const (
	ReasonAutoProceed      TerminationReason = "auto_proceed"
	ReasonProceedWithFlags TerminationReason = "proceed_with_flags"
	ReasonHumanAccepted    TerminationReason = "human_accepted"
	ReasonHumanCanceled    TerminationReason = "human_canceled"
	ReasonReviewTimedOut   TerminationReason = "review_timed_out"
	ReasonRunError         TerminationReason = "run_error"
	ReasonResumeError      TerminationReason = "resume_error"
)

// maxReviewRounds caps correct-and-retry loops per workflow execution so a
// job can't ping-pong between the engine and a reviewer forever.
const maxReviewRounds = 5

// WorkflowInput is the input to the reconciliation lifecycle workflow.
type WorkflowInput struct {
	Job           domain.ReconciliationJob `json:"job"`
	ReviewTimeout time.Duration            `json:"review_timeout,omitempty"` // 0 = DefaultReviewTimeout
}

// WorkflowResult is the output of the reconciliation lifecycle workflow.
// The workflow returns this on all paths; only infra failures produce
// workflow-level errors.
type WorkflowResult struct {
	Job          domain.ReconciliationJob `json:"job"`
	Report       *domain.AggregateReport  `json:"report,omitempty"`
	Reason       TerminationReason        `json:"reason"`
	CurrentPhase string                   `json:"current_phase"`
	Error        *string                  `json:"error,omitempty"`
}

// ReconciliationLifecycleWorkflow drives one job from submission to a
// terminal decision:
//
//	reconcile -> decide -> [review gate -> resume]* -> notify -> END
//
// The review gate only opens when the recommendation requires a human;
// proceed and proceed_with_flags jobs flow straight to notification.
func ReconciliationLifecycleWorkflow(ctx workflow.Context, input WorkflowInput) (WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	result := WorkflowResult{Job: input.Job, CurrentPhase: "pending"}

	// Expose in-flight state to the querier before any activity runs.
	if err := workflow.SetQueryHandler(ctx, QueryNameState, func() (WorkflowResult, error) {
		return result, nil
	}); err != nil {
		return result, fmt.Errorf("register state query: %w", err)
	}

	reviewTimeout := input.ReviewTimeout
	if reviewTimeout <= 0 {
		reviewTimeout = DefaultReviewTimeout
	}

	// Lookup retries live inside the resolver; at the activity level one
	// attempt is enough and keeps the failure semantics in the engine.
	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	actCtx := workflow.WithActivityOptions(ctx, actOpts)

	// ------------------------------------------------------------------
	// Reconcile: fan the job out across the entity pool
	// ------------------------------------------------------------------
	result.CurrentPhase = "reconciling"
	var runOut activities.RunOutput
	err := workflow.ExecuteActivity(actCtx, "RunReconciliation", activities.RunInput{
		Job: input.Job,
	}).Get(ctx, &runOut)
	if err != nil {
		errMsg := fmt.Sprintf("reconciliation failed: %v", err)
		result.Error = &errMsg
		result.Reason = ReasonRunError
		return result, nil
	}
	report := runOut.Report
	result.Report = &report
	coordinator.Apply(&result.Job, &report)
	logger.Info("reconciliation complete",
		"job_id", input.Job.JobID,
		"confidence", report.ProjectConfidence,
		"recommendation", report.Recommendation)

	// ------------------------------------------------------------------
	// Review gate: loop while a human keeps sending corrections
	// ------------------------------------------------------------------
	for round := 0; report.Recommendation.RequiresHuman(); round++ {
		if round >= maxReviewRounds {
			logger.Warn("review round limit reached, treating as canceled", "job_id", input.Job.JobID)
			result.Reason = ReasonHumanCanceled
			return result, nil
		}

		result.CurrentPhase = "awaiting_review"
		requestedAt := workflow.Now(ctx)
		review, err := waitForReview(ctx, reviewTimeout)
		if err != nil {
			return WorkflowResult{}, fmt.Errorf("review gate: %w", err)
		}

		if review.outcome != reviewTimedOut {
			// Telemetry only; ignore failures.
			_ = workflow.ExecuteActivity(actCtx, "RecordReviewOutcome", activities.ReviewOutcomeInput{
				JobID:   input.Job.JobID,
				Action:  review.response.Action,
				Latency: workflow.Now(ctx).Sub(requestedAt),
			}).Get(ctx, nil)
		}

		switch review.outcome {
		case reviewTimedOut:
			logger.Info("review timed out", "job_id", input.Job.JobID)
			result.Reason = ReasonReviewTimedOut
			return result, nil

		case reviewCanceled:
			result.Job.DecidedBy = review.response.By
			result.Job.DecisionReason = review.response.Reason
			result.Reason = ReasonHumanCanceled
			return result, nil

		case reviewAccepted:
			result.Job.DecidedBy = review.response.By
			result.Job.DecisionReason = review.response.Reason
			result.Reason = ReasonHumanAccepted
			// Accepted as-is: flow on to notification.
			report.Recommendation = domain.RecommendProceedWithFlags

		case reviewCorrected:
			result.CurrentPhase = "resuming"
			var resumeOut activities.ResumeOutput
			err := workflow.ExecuteActivity(actCtx, "ResumeReconciliation", activities.ResumeInput{
				Job:      input.Job,
				Prior:    report,
				Decision: review.response.Decision(),
			}).Get(ctx, &resumeOut)
			if err != nil {
				errMsg := fmt.Sprintf("resume failed: %v", err)
				result.Error = &errMsg
				result.Reason = ReasonResumeError
				return result, nil
			}
			report = resumeOut.Report
			result.Report = &report
			result.Job.DecidedBy = review.response.By
			result.Job.DecisionReason = review.response.Reason
			coordinator.Apply(&result.Job, &report)
			logger.Info("resume complete",
				"job_id", input.Job.JobID,
				"confidence", report.ProjectConfidence,
				"recommendation", report.Recommendation)
		}
	}

	// ------------------------------------------------------------------
	// Notify: dispatch the surviving mismatch intents
	// ------------------------------------------------------------------
	result.CurrentPhase = "notifying"
	var dispatchOut activities.DispatchOutput
	err = workflow.ExecuteActivity(actCtx, "DispatchNotifications", activities.DispatchInput{
		Report: report,
	}).Get(ctx, &dispatchOut)
	if err != nil {
		// Notification delivery is best effort; the reconciliation result
		// itself is already final.
		logger.Warn("notification dispatch failed", "job_id", input.Job.JobID, "error", err)
	} else if len(dispatchOut.FailedRefs) > 0 {
		logger.Warn("some notifications undelivered", "job_id", input.Job.JobID, "refs", dispatchOut.FailedRefs)
	}

	result.CurrentPhase = "completed"
	if result.Reason == "" {
		switch report.Recommendation {
		case domain.RecommendProceed:
			result.Reason = ReasonAutoProceed
		default:
			result.Reason = ReasonProceedWithFlags
		}
	}
	logger.Info("workflow completed", "job_id", input.Job.JobID, "reason", result.Reason)
	return result, nil
}

type reviewOutcome int

const (
	reviewTimedOut reviewOutcome = iota
	reviewAccepted
	reviewCorrected
	reviewCanceled
)

type reviewResult struct {
	outcome  reviewOutcome
	response activities.ReviewResponse
}

// waitForReview registers a Temporal Update handler and waits for either a
// human decision or the review timeout, whichever comes first.
func waitForReview(ctx workflow.Context, timeout time.Duration) (reviewResult, error) {
	logger := workflow.GetLogger(ctx)

	var result reviewResult
	responded := false
	timedOut := false

	err := workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateNameReview,
		func(ctx workflow.Context, resp activities.ReviewResponse) (string, error) {
			if responded {
				return "", fmt.Errorf("review already received")
			}
			responded = true
			result.response = resp
			switch resp.Action {
			case domain.ReviewAccept:
				result.outcome = reviewAccepted
			case domain.ReviewCorrect:
				result.outcome = reviewCorrected
			case domain.ReviewCancel:
				result.outcome = reviewCanceled
			}
			logger.Info("review received", "action", resp.Action, "by", resp.By)
			return string(resp.Action), nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(resp activities.ReviewResponse) error {
				if err := domain.ValidateReviewDecision(resp.Decision()); err != nil {
					return err
				}
				if responded {
					return fmt.Errorf("review already received")
				}
				return nil
			},
		},
	)
	if err != nil {
		return reviewResult{}, fmt.Errorf("register review handler: %w", err)
	}

	// Race: review update vs the timeout timer.
	selector := workflow.NewSelector(ctx)

	timer := workflow.NewTimer(ctx, timeout)
	selector.AddFuture(timer, func(f workflow.Future) {
		if !responded {
			timedOut = true
			logger.Info("review window expired", "timeout", timeout)
		}
	})

	// The Update handler runs in the Temporal deterministic executor between
	// Select calls, setting `responded = true`. The loop exits when either
	// the handler fires (responded) or the timer expires.
	for !responded && !timedOut {
		selector.Select(ctx)
	}

	if timedOut {
		return reviewResult{outcome: reviewTimedOut}, nil
	}
	return result, nil
}
