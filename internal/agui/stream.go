package agui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/invoiceops/reconcile-go/internal/temporal/querier"
	"github.com/invoiceops/reconcile-go/internal/temporal/workflows"
	"github.com/invoiceops/reconcile-go/internal/uischema"
)

// StreamConfig controls SSE stream behavior.
type StreamConfig struct {
	PollInterval time.Duration
	MaxDuration  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() StreamConfig {
	return StreamConfig{
		PollInterval: 2 * time.Second,
		MaxDuration:  30 * time.Minute,
	}
}

// StreamHandler serves SSE events for a job workflow's state changes.
func StreamHandler(q querier.WorkflowQuerier, cfg StreamConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wfID := r.PathValue("id")
		if wfID == "" {
			http.Error(w, "workflow id required", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ctx, cancel := context.WithTimeout(r.Context(), cfg.MaxDuration)
		defer cancel()

		// Emit RUN_STARTED.
		writeSSE(w, flusher, Event{
			Type:       EventRunStarted,
			Timestamp:  time.Now().UTC(),
			WorkflowID: wfID,
		})

		// Initial state snapshot.
		result, err := q.GetWorkflowState(ctx, wfID)
		if err != nil {
			writeSSE(w, flusher, Event{
				Type:       EventRunError,
				Timestamp:  time.Now().UTC(),
				WorkflowID: wfID,
				Data:       ErrorData{Message: err.Error()},
			})
			return
		}

		schema := uischema.Build(result.CurrentPhase, result.Job, result.Report)
		writeSSE(w, flusher, Event{
			Type:       EventStateSnapshot,
			Timestamp:  time.Now().UTC(),
			WorkflowID: wfID,
			Data: StateSnapshotData{
				Phase:    result.CurrentPhase,
				State:    result,
				UISchema: schema,
			},
		})

		prev := result

		// A termination reason only appears on terminal results.
		if result.Reason != "" {
			writeSSE(w, flusher, Event{
				Type:       EventRunFinished,
				Timestamp:  time.Now().UTC(),
				WorkflowID: wfID,
				Data:       map[string]any{"reason": string(result.Reason)},
			})
			return
		}

		// Poll loop.
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result, err = q.GetWorkflowState(ctx, wfID)
				if err != nil {
					writeSSE(w, flusher, Event{
						Type:       EventRunError,
						Timestamp:  time.Now().UTC(),
						WorkflowID: wfID,
						Data:       ErrorData{Message: err.Error()},
					})
					return
				}

				// Phase transition.
				if result.CurrentPhase != prev.CurrentPhase {
					writeSSE(w, flusher, Event{
						Type:       EventStepFinished,
						Timestamp:  time.Now().UTC(),
						WorkflowID: wfID,
						Data:       StepData{Phase: prev.CurrentPhase},
					})
					writeSSE(w, flusher, Event{
						Type:       EventStepStarted,
						Timestamp:  time.Now().UTC(),
						WorkflowID: wfID,
						Data:       StepData{Phase: result.CurrentPhase},
					})
				}

				// Compute deltas and emit.
				patches := computePatches(prev, result)
				if len(patches) > 0 {
					schema = uischema.Build(result.CurrentPhase, result.Job, result.Report)
					writeSSE(w, flusher, Event{
						Type:       EventStateDelta,
						Timestamp:  time.Now().UTC(),
						WorkflowID: wfID,
						Data: StateDeltaData{
							Phase:    result.CurrentPhase,
							Patches:  patches,
							UISchema: schema,
						},
					})
				}

				if result.Reason != "" {
					writeSSE(w, flusher, Event{
						Type:       EventRunFinished,
						Timestamp:  time.Now().UTC(),
						WorkflowID: wfID,
						Data:       map[string]any{"reason": string(result.Reason)},
					})
					return
				}
				prev = result
			}
		}
	}
}

// computePatches generates field-specific patches between two poll results.
// Field-specific comparison avoids a generic deep-diff dependency.
func computePatches(prev, curr *workflows.WorkflowResult) []Patch {
	var patches []Patch

	if curr.CurrentPhase != prev.CurrentPhase {
		patches = append(patches, Patch{Op: "replace", Path: "/current_phase", Value: curr.CurrentPhase})
	}

	switch {
	case curr.Report == nil:
	case prev.Report == nil:
		patches = append(patches, Patch{Op: "add", Path: "/report", Value: curr.Report})
	default:
		if curr.Report.ProjectConfidence != prev.Report.ProjectConfidence {
			patches = append(patches, Patch{
				Op: "replace", Path: "/report/project_confidence", Value: curr.Report.ProjectConfidence,
			})
		}
		if curr.Report.Recommendation != prev.Report.Recommendation {
			patches = append(patches, Patch{
				Op: "replace", Path: "/report/recommendation", Value: string(curr.Report.Recommendation),
			})
		}
	}

	return patches
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	flusher.Flush()
}
