package resolver

import (
	"context"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

// TimeEntry is one CRM time record within the billing period.
type TimeEntry struct {
	Date string  `json:"date"`
	Days float64 `json:"days"`
}

// CRMClient is the capability interface onto the CRM system of record.
// Implementations must return NotFoundError / TransientError / MalformedError
// from this package; protocol details (REST, pagination, auth) are theirs.
type CRMClient interface {
	// ResolveEntity maps an external reference to the CRM internal ID.
	ResolveEntity(ctx context.Context, externalRef string) (string, error)
	// Delivery returns the delivery (project assignment) ID binding the
	// entity to the project.
	Delivery(ctx context.Context, internalID, projectRef string) (string, error)
	// TimeEntries returns the entity's time records on the delivery for
	// the period.
	TimeEntries(ctx context.Context, internalID, deliveryID string, period domain.Period) ([]TimeEntry, error)
	// Rate returns the daily rate negotiated on the delivery.
	Rate(ctx context.Context, internalID, deliveryID string) (float64, error)
}
