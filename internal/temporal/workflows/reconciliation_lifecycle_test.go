package workflows_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/temporal/activities"
	"github.com/invoiceops/reconcile-go/internal/temporal/workflows"
)

type ReconciliationLifecycleSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *ReconciliationLifecycleSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	// Register activity struct so string-based OnActivity mocks work.
	s.env.RegisterActivity(&activities.Activities{})
}

func (s *ReconciliationLifecycleSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func (s *ReconciliationLifecycleSuite) baseInput() workflows.WorkflowInput {
	return workflows.WorkflowInput{
		Job: domain.ReconciliationJob{
			JobID:      "job-1",
			ProjectRef: "prj-1",
			Period:     domain.Period{Start: "2026-07-01", End: "2026-07-31"},
			Entities: []domain.DeclaredEntity{
				{ExternalRef: "w-1", DeclaredDays: 20, DeclaredCost: 10000},
				{ExternalRef: "w-2", DeclaredDays: 18, DeclaredCost: 9000},
			},
			Status: domain.JobPending,
		},
	}
}

func reportWith(recommendation domain.Recommendation, confidence float64, records ...domain.WorkerRecord) domain.AggregateReport {
	counts := make(map[domain.RecordStatus]int)
	for _, rec := range records {
		counts[rec.Status]++
	}
	return domain.AggregateReport{
		JobID:             "job-1",
		ProjectRef:        "prj-1",
		Records:           records,
		StatusCounts:      counts,
		ProjectConfidence: confidence,
		Recommendation:    recommendation,
	}
}

// 1. Fully matched job: no review gate, straight to notification.
func (s *ReconciliationLifecycleSuite) TestAutoProceed() {
	input := s.baseInput()

	s.env.OnActivity("RunReconciliation", testAnyCtx, testAnyInput).Return(activities.RunOutput{
		Report: reportWith(domain.RecommendProceed, 1.0,
			domain.WorkerRecord{ExternalRef: "w-1", Status: domain.StatusMatched, Confidence: 1},
			domain.WorkerRecord{ExternalRef: "w-2", Status: domain.StatusMatched, Confidence: 1},
		),
	}, nil)
	s.env.OnActivity("DispatchNotifications", testAnyCtx, testAnyInput).Return(activities.DispatchOutput{}, nil)

	s.env.ExecuteWorkflow(workflows.ReconciliationLifecycleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result workflows.WorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(workflows.ReasonAutoProceed, result.Reason)
	s.Equal(domain.JobCompleted, result.Job.Status)
	s.Equal(1.0, result.Job.ProjectConfidence)
}

// 2. Mostly matched: proceed_with_flags skips the review gate too.
func (s *ReconciliationLifecycleSuite) TestProceedWithFlags() {
	input := s.baseInput()

	s.env.OnActivity("RunReconciliation", testAnyCtx, testAnyInput).Return(activities.RunOutput{
		Report: reportWith(domain.RecommendProceedWithFlags, 0.972,
			domain.WorkerRecord{ExternalRef: "w-1", Status: domain.StatusMatched, Confidence: 1},
			domain.WorkerRecord{ExternalRef: "w-2", Status: domain.StatusDaysMismatch, Confidence: 0.3},
		),
	}, nil)
	s.env.OnActivity("DispatchNotifications", testAnyCtx, testAnyInput).Return(activities.DispatchOutput{}, nil)

	s.env.ExecuteWorkflow(workflows.ReconciliationLifecycleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result workflows.WorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(workflows.ReasonProceedWithFlags, result.Reason)
}

// 3. Review gate: human accepts the report as-is.
func (s *ReconciliationLifecycleSuite) TestReviewAccepted() {
	input := s.baseInput()

	s.env.OnActivity("RunReconciliation", testAnyCtx, testAnyInput).Return(activities.RunOutput{
		Report: reportWith(domain.RecommendReview, 0.75,
			domain.WorkerRecord{ExternalRef: "w-1", Status: domain.StatusMatched, Confidence: 1},
			domain.WorkerRecord{ExternalRef: "w-2", Status: domain.StatusCostMismatch, Confidence: 0.5},
		),
	}, nil)
	s.env.OnActivity("DispatchNotifications", testAnyCtx, testAnyInput).Return(activities.DispatchOutput{}, nil)

	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflowNoRejection(workflows.UpdateNameReview, "test-accept-id", s.T(),
			activities.ReviewResponse{
				Action: domain.ReviewAccept,
				By:     "finance-lead",
				Reason: "delta within contract tolerance",
			})
	}, 1*time.Second)

	s.env.ExecuteWorkflow(workflows.ReconciliationLifecycleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result workflows.WorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(workflows.ReasonHumanAccepted, result.Reason)
	s.Equal("finance-lead", result.Job.DecidedBy)
}

// 4. Review gate: human cancels the job.
func (s *ReconciliationLifecycleSuite) TestReviewCanceled() {
	input := s.baseInput()

	s.env.OnActivity("RunReconciliation", testAnyCtx, testAnyInput).Return(activities.RunOutput{
		Report: reportWith(domain.RecommendReject, 0.4,
			domain.WorkerRecord{ExternalRef: "w-1", Status: domain.StatusEntityNotFound},
			domain.WorkerRecord{ExternalRef: "w-2", Status: domain.StatusCostMismatch, Confidence: 0.5},
		),
	}, nil)

	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflowNoRejection(workflows.UpdateNameReview, "test-cancel-id", s.T(),
			activities.ReviewResponse{
				Action: domain.ReviewCancel,
				By:     "finance-lead",
				Reason: "submission withdrawn by client",
			})
	}, 1*time.Second)

	s.env.ExecuteWorkflow(workflows.ReconciliationLifecycleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result workflows.WorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(workflows.ReasonHumanCanceled, result.Reason)
}

// 5. Review gate: correct_and_retry resumes the run and the corrected job
// then proceeds without a second review.
func (s *ReconciliationLifecycleSuite) TestReviewCorrectedAndResumed() {
	input := s.baseInput()

	s.env.OnActivity("RunReconciliation", testAnyCtx, testAnyInput).Return(activities.RunOutput{
		Report: reportWith(domain.RecommendReview, 0.75,
			domain.WorkerRecord{ExternalRef: "w-1", Status: domain.StatusMatched, Confidence: 1},
			domain.WorkerRecord{ExternalRef: "w-2", Status: domain.StatusCostMismatch, Confidence: 0.5},
		),
	}, nil)
	s.env.OnActivity("ResumeReconciliation", testAnyCtx, testAnyInput).Return(activities.ResumeOutput{
		Report: reportWith(domain.RecommendProceed, 1.0,
			domain.WorkerRecord{ExternalRef: "w-1", Status: domain.StatusMatched, Confidence: 1},
			domain.WorkerRecord{ExternalRef: "w-2", Status: domain.StatusMatched, Confidence: 1},
		),
	}, nil)
	s.env.OnActivity("DispatchNotifications", testAnyCtx, testAnyInput).Return(activities.DispatchOutput{}, nil)

	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflowNoRejection(workflows.UpdateNameReview, "test-correct-id", s.T(),
			activities.ReviewResponse{
				Action: domain.ReviewCorrect,
				By:     "finance-lead",
				Reason: "client sent a corrected invoice",
				UpdatedEntities: []domain.DeclaredEntity{
					{ExternalRef: "w-2", DeclaredDays: 18, DeclaredCost: 8500},
				},
			})
	}, 1*time.Second)

	s.env.ExecuteWorkflow(workflows.ReconciliationLifecycleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result workflows.WorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(workflows.ReasonAutoProceed, result.Reason)
	s.Equal(domain.JobCompleted, result.Job.Status)
	s.Equal("finance-lead", result.Job.DecidedBy)
	s.Equal(1.0, result.Report.ProjectConfidence)
}

// 6. Review gate: nobody answers within the review window.
func (s *ReconciliationLifecycleSuite) TestReviewTimeout() {
	input := s.baseInput()

	s.env.OnActivity("RunReconciliation", testAnyCtx, testAnyInput).Return(activities.RunOutput{
		Report: reportWith(domain.RecommendReview, 0.75,
			domain.WorkerRecord{ExternalRef: "w-1", Status: domain.StatusMatched, Confidence: 1},
			domain.WorkerRecord{ExternalRef: "w-2", Status: domain.StatusCostMismatch, Confidence: 0.5},
		),
	}, nil)

	// No callback registered -- timer fires after 72h of workflow time.
	s.env.ExecuteWorkflow(workflows.ReconciliationLifecycleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result workflows.WorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(workflows.ReasonReviewTimedOut, result.Reason)
}

// 7. Run activity error (malformed job) surfaces in the result, not as a
// workflow error.
func (s *ReconciliationLifecycleSuite) TestRunActivityError() {
	input := s.baseInput()

	s.env.OnActivity("RunReconciliation", testAnyCtx, testAnyInput).Return(
		activities.RunOutput{}, fmt.Errorf("job malformed: entity list is empty"))

	s.env.ExecuteWorkflow(workflows.ReconciliationLifecycleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result workflows.WorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(workflows.ReasonRunError, result.Reason)
	s.NotNil(result.Error)
}

// 8. Notification failure does not change the job outcome.
func (s *ReconciliationLifecycleSuite) TestNotifyFailureIsBestEffort() {
	input := s.baseInput()

	s.env.OnActivity("RunReconciliation", testAnyCtx, testAnyInput).Return(activities.RunOutput{
		Report: reportWith(domain.RecommendProceed, 1.0,
			domain.WorkerRecord{ExternalRef: "w-1", Status: domain.StatusMatched, Confidence: 1},
		),
	}, nil)
	s.env.OnActivity("DispatchNotifications", testAnyCtx, testAnyInput).Return(
		activities.DispatchOutput{}, fmt.Errorf("mail gateway unreachable"))

	s.env.ExecuteWorkflow(workflows.ReconciliationLifecycleWorkflow, input)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result workflows.WorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(workflows.ReasonAutoProceed, result.Reason)
}

func TestReconciliationLifecycleSuite(t *testing.T) {
	suite.Run(t, new(ReconciliationLifecycleSuite))
}
