// Package notify dispatches the notification intents a reconciliation run
// produces. The engine only decides WHO gets notified about WHAT; rendering
// and delivery live behind the Dispatcher interface.
package notify

import (
	"context"
	"log/slog"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

// Dispatcher delivers notification intents. Implementations must be safe
// for concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string, intent domain.NotificationIntent) error
}

// LogDispatcher records intents on the structured log instead of sending
// anything. Used in stub mode and in environments without a mail gateway.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d LogDispatcher) Dispatch(ctx context.Context, jobID string, intent domain.NotificationIntent) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification intent",
		slog.String("job_id", jobID),
		slog.String("recipient_kind", string(intent.Recipient)),
		slog.String("entity_ref", intent.EntityRef),
		slog.String("status", string(intent.Status)),
		slog.Int("discrepancies", len(intent.Discrepancies)))
	return nil
}

// DispatchAll sends every intent in the report, continuing past individual
// delivery failures and returning the refs that could not be notified.
func DispatchAll(ctx context.Context, d Dispatcher, report *domain.AggregateReport) []string {
	var failed []string
	for _, intent := range report.Intents() {
		if err := d.Dispatch(ctx, report.JobID, intent); err != nil {
			failed = append(failed, intent.EntityRef)
		}
	}
	return failed
}
