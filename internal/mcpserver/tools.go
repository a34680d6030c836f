// Package mcpserver exposes reconciliation job data via MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/temporal/activities"
	"github.com/invoiceops/reconcile-go/internal/temporal/querier"
	"github.com/invoiceops/reconcile-go/internal/temporal/versioning"
	"github.com/invoiceops/reconcile-go/internal/uischema"
)

// RegisterTools registers all reconciliation MCP tools on the given server.
func RegisterTools(server *mcp.Server, q querier.WorkflowQuerier) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_jobs",
			Description: "List reconciliation jobs with status and workflow IDs",
		},
		listJobsHandler(q),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_job_state",
			Description: "Get job, report, and termination reason for a reconciliation workflow",
		},
		getJobStateHandler(q),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_job_report",
			Description: "Get the aggregate discrepancy report for a reconciliation workflow",
		},
		getJobReportHandler(q),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_job_ui",
			Description: "Get UI schema (components + actions) for rendering a reconciliation job",
		},
		getJobUIHandler(q),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "accept_job",
			Description: "Accept a job held for review and let it proceed as-is",
		},
		reviewHandler(q, domain.ReviewAccept, "accept_job"),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "cancel_job",
			Description: "Cancel a job held for review",
		},
		reviewHandler(q, domain.ReviewCancel, "cancel_job"),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "correct_job",
			Description: "Submit corrected entity declarations and re-run the mismatched portion of a job",
		},
		correctJobHandler(q),
	)
}

type listJobsInput struct {
	Status string `json:"status,omitempty"`
}

func listJobsHandler(q querier.WorkflowQuerier) mcp.ToolHandlerFor[listJobsInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input listJobsInput) (*mcp.CallToolResult, any, error) {
		opts := querier.ListOptions{TaskQueue: versioning.QueueReconcile}
		if input.Status != "" {
			opts.StatusFilter = input.Status
		}

		jobs, err := q.ListWorkflows(ctx, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("list_jobs: %w", err)
		}

		return textResult(jobs)
	}
}

type workflowIDInput struct {
	WorkflowID string `json:"workflow_id"`
}

func getJobStateHandler(q querier.WorkflowQuerier) mcp.ToolHandlerFor[workflowIDInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input workflowIDInput) (*mcp.CallToolResult, any, error) {
		if input.WorkflowID == "" {
			return errorResult("workflow_id is required"), nil, nil
		}

		result, err := q.GetWorkflowState(ctx, input.WorkflowID)
		if err != nil {
			return nil, nil, fmt.Errorf("get_job_state: %w", err)
		}

		return textResult(result)
	}
}

func getJobReportHandler(q querier.WorkflowQuerier) mcp.ToolHandlerFor[workflowIDInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input workflowIDInput) (*mcp.CallToolResult, any, error) {
		if input.WorkflowID == "" {
			return errorResult("workflow_id is required"), nil, nil
		}

		result, err := q.GetWorkflowState(ctx, input.WorkflowID)
		if err != nil {
			return nil, nil, fmt.Errorf("get_job_report: %w", err)
		}
		if result.Report == nil {
			return errorResult("report not available yet"), nil, nil
		}

		return textResult(result.Report)
	}
}

func getJobUIHandler(q querier.WorkflowQuerier) mcp.ToolHandlerFor[workflowIDInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input workflowIDInput) (*mcp.CallToolResult, any, error) {
		if input.WorkflowID == "" {
			return errorResult("workflow_id is required"), nil, nil
		}

		result, err := q.GetWorkflowState(ctx, input.WorkflowID)
		if err != nil {
			return nil, nil, fmt.Errorf("get_job_ui: %w", err)
		}

		schema := uischema.Build(result.CurrentPhase, result.Job, result.Report)
		return textResult(schema)
	}
}

type reviewInput struct {
	WorkflowID string `json:"workflow_id"`
	By         string `json:"by"`
	Reason     string `json:"reason,omitempty"`
}

func reviewHandler(q querier.WorkflowQuerier, action domain.ReviewAction, toolName string) mcp.ToolHandlerFor[reviewInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input reviewInput) (*mcp.CallToolResult, any, error) {
		if input.WorkflowID == "" || input.By == "" {
			return errorResult("workflow_id and by are required"), nil, nil
		}

		resp := activities.ReviewResponse{Action: action, By: input.By, Reason: input.Reason}
		result, err := q.SubmitReview(ctx, input.WorkflowID, resp)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", toolName, err)
		}

		return textResult(map[string]string{"result": result})
	}
}

type correctInput struct {
	WorkflowID      string                  `json:"workflow_id"`
	By              string                  `json:"by"`
	Reason          string                  `json:"reason,omitempty"`
	UpdatedEntities []domain.DeclaredEntity `json:"updated_entities"`
}

func correctJobHandler(q querier.WorkflowQuerier) mcp.ToolHandlerFor[correctInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input correctInput) (*mcp.CallToolResult, any, error) {
		if input.WorkflowID == "" || input.By == "" {
			return errorResult("workflow_id and by are required"), nil, nil
		}
		if len(input.UpdatedEntities) == 0 {
			return errorResult("updated_entities is required for a correction"), nil, nil
		}

		resp := activities.ReviewResponse{
			Action:          domain.ReviewCorrect,
			By:              input.By,
			Reason:          input.Reason,
			UpdatedEntities: input.UpdatedEntities,
		}
		result, err := q.SubmitReview(ctx, input.WorkflowID, resp)
		if err != nil {
			return nil, nil, fmt.Errorf("correct_job: %w", err)
		}

		return textResult(map[string]string{"result": result})
	}
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
