package querier

import (
	"context"

	"github.com/invoiceops/reconcile-go/internal/temporal/activities"
	"github.com/invoiceops/reconcile-go/internal/temporal/workflows"
)

// WorkflowQuerier provides read access to workflow state and the ability
// to submit review decisions. Used by the HTTP API and MCP server.
type WorkflowQuerier interface {
	ListWorkflows(ctx context.Context, opts ListOptions) ([]WorkflowSummary, error)
	GetWorkflowState(ctx context.Context, workflowID string) (*workflows.WorkflowResult, error)
	DescribeWorkflow(ctx context.Context, workflowID string) (*WorkflowDescription, error)
	SubmitReview(ctx context.Context, workflowID string, resp activities.ReviewResponse) (string, error)
}
