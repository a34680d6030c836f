package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

type recordingDispatcher struct {
	sent []domain.NotificationIntent
	fail map[string]bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ string, intent domain.NotificationIntent) error {
	if d.fail[intent.EntityRef] {
		return fmt.Errorf("smtp: delivery refused")
	}
	d.sent = append(d.sent, intent)
	return nil
}

func sampleReport() *domain.AggregateReport {
	return &domain.AggregateReport{
		JobID: "job-1",
		Records: []domain.WorkerRecord{
			{ExternalRef: "w-1", Status: domain.StatusMatched},
			{ExternalRef: "w-2", Status: domain.StatusDaysMismatch, Notification: &domain.NotificationIntent{
				Recipient: domain.RecipientWorker, EntityRef: "w-2", Status: domain.StatusDaysMismatch,
			}},
			{ExternalRef: "w-3", Status: domain.StatusCostMismatch, Notification: &domain.NotificationIntent{
				Recipient: domain.RecipientClient, EntityRef: "w-3", Status: domain.StatusCostMismatch,
			}},
		},
	}
}

func TestDispatchAll(t *testing.T) {
	t.Parallel()
	d := &recordingDispatcher{}
	failed := DispatchAll(context.Background(), d, sampleReport())
	if len(failed) != 0 {
		t.Fatalf("expected no failures, got %v", failed)
	}
	if len(d.sent) != 2 {
		t.Fatalf("expected 2 intents dispatched, got %d", len(d.sent))
	}
	if d.sent[0].EntityRef != "w-2" || d.sent[1].EntityRef != "w-3" {
		t.Errorf("intents out of order: %+v", d.sent)
	}
}

func TestDispatchAllContinuesPastFailures(t *testing.T) {
	t.Parallel()
	d := &recordingDispatcher{fail: map[string]bool{"w-2": true}}
	failed := DispatchAll(context.Background(), d, sampleReport())
	if len(failed) != 1 || failed[0] != "w-2" {
		t.Fatalf("expected w-2 to fail, got %v", failed)
	}
	if len(d.sent) != 1 || d.sent[0].EntityRef != "w-3" {
		t.Fatalf("later intents must still be delivered, got %+v", d.sent)
	}
}

func TestLogDispatcherNeverErrors(t *testing.T) {
	t.Parallel()
	if err := (LogDispatcher{}).Dispatch(context.Background(), "job-1", domain.NotificationIntent{
		Recipient: domain.RecipientWorker, EntityRef: "w-1",
	}); err != nil {
		t.Fatalf("log dispatcher must not fail: %v", err)
	}
}
