// Package queues defines per-queue worker configuration for task-queue partitioning.
package queues

import (
	"fmt"
	"strings"

	"go.temporal.io/sdk/worker"

	"github.com/invoiceops/reconcile-go/internal/temporal/versioning"
)

// QueueConfig holds worker options for a single task queue.
type QueueConfig struct {
	Name    string
	Options worker.Options
}

// DefaultConfigs returns the standard per-queue worker options.
//
//   - QueueReconcile: CRM-bound lookup activities, moderate concurrency so
//     the engine's own fan-out stays the effective bound
//   - QueueNotify: outbound notifications, tight concurrency
func DefaultConfigs() map[string]QueueConfig {
	return map[string]QueueConfig{
		versioning.QueueReconcile: {
			Name: versioning.QueueReconcile,
			Options: worker.Options{
				MaxConcurrentActivityExecutionSize:     10,
				MaxConcurrentWorkflowTaskExecutionSize: 10,
			},
		},
		versioning.QueueNotify: {
			Name: versioning.QueueNotify,
			Options: worker.Options{
				MaxConcurrentActivityExecutionSize:     3,
				MaxConcurrentWorkflowTaskExecutionSize: 1,
			},
		},
	}
}

// ParseQueues parses a comma-separated queue list (e.g. "reconcile,notify")
// into a set of queue names. Accepts both short names ("reconcile") and
// full names ("recon-reconcile"). Returns an error for unknown queues.
func ParseQueues(raw string) ([]string, error) {
	if raw == "" {
		return []string{versioning.QueueReconcile}, nil
	}

	shortNames := map[string]string{
		"reconcile": versioning.QueueReconcile,
		"notify":    versioning.QueueNotify,
	}
	fullNames := map[string]bool{
		versioning.QueueReconcile: true,
		versioning.QueueNotify:    true,
	}

	seen := make(map[string]bool)
	var result []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		// Resolve short name to full name.
		if full, ok := shortNames[name]; ok {
			name = full
		}
		if !fullNames[name] {
			return nil, fmt.Errorf("unknown queue %q", name)
		}
		if !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}
	if len(result) == 0 {
		return []string{versioning.QueueReconcile}, nil
	}
	return result, nil
}
