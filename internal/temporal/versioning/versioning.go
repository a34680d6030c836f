// Package versioning defines workflow versions and task queue names.
package versioning

const (
	// Workflow versions for determinism tracking.
	ReconciliationLifecycleV1 = "reconciliation-lifecycle-v1"

	// Task queues. Reconcile carries the lifecycle workflows and CRM
	// lookups; notify is isolated so a slow mail gateway cannot starve
	// reconciliation work.
	QueueReconcile = "recon-reconcile"
	QueueNotify    = "recon-notify"
)
