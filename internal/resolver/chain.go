package resolver

import (
	"context"
	"fmt"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

// Chain step names. Each step's output is stored in vars under its name;
// later steps depend on earlier outputs, so no result may be discarded
// before the chain completes.
const (
	StepResolveEntity = "resolve_entity"
	StepDelivery      = "resolve_delivery"
	StepTimeEntries   = "collect_time_entries"
	StepRate          = "resolve_rate"
)

// StandardChain builds the default four-call lookup chain against a CRM
// client:
//
//	resolve_entity       external ref        → internal_id
//	resolve_delivery     internal_id         → delivery_id
//	collect_time_entries internal_id+delivery → days (summed)
//	resolve_rate         internal_id+delivery → rate, cost = days × rate
//
// The chain shape is collaborator-specific configuration; callers with a
// different CRM topology supply their own ChainBuilder.
func StandardChain(client CRMClient) ChainBuilder {
	return func(entityRef, projectRef string, period domain.Period) []Step {
		return []Step{
			{
				Name: StepResolveEntity,
				Input: func(Vars) map[string]any {
					return map[string]any{"external_ref": entityRef}
				},
				Run: func(ctx context.Context, vars Vars) (any, error) {
					id, err := client.ResolveEntity(ctx, entityRef)
					if err != nil {
						return nil, err
					}
					vars[VarInternalID] = id
					return id, nil
				},
			},
			{
				Name: StepDelivery,
				Input: func(vars Vars) map[string]any {
					return map[string]any{
						"internal_id": vars.String(VarInternalID),
						"project_ref": projectRef,
					}
				},
				Run: func(ctx context.Context, vars Vars) (any, error) {
					id := vars.String(VarInternalID)
					if id == "" {
						return nil, &MalformedError{Op: StepDelivery, Err: fmt.Errorf("missing %s from prior step", VarInternalID)}
					}
					deliveryID, err := client.Delivery(ctx, id, projectRef)
					if err != nil {
						return nil, err
					}
					vars["delivery_id"] = deliveryID
					return deliveryID, nil
				},
			},
			{
				Name: StepTimeEntries,
				Input: func(vars Vars) map[string]any {
					return map[string]any{
						"internal_id": vars.String(VarInternalID),
						"delivery_id": vars.String("delivery_id"),
						"period":      fmt.Sprintf("%s..%s", period.Start, period.End),
					}
				},
				Run: func(ctx context.Context, vars Vars) (any, error) {
					internalID := vars.String(VarInternalID)
					deliveryID := vars.String("delivery_id")
					if internalID == "" || deliveryID == "" {
						return nil, &MalformedError{Op: StepTimeEntries, Err: fmt.Errorf("missing prior chain outputs")}
					}
					entries, err := client.TimeEntries(ctx, internalID, deliveryID, period)
					if err != nil {
						return nil, err
					}
					var days float64
					for _, e := range entries {
						if e.Days < 0 {
							return nil, &MalformedError{Op: StepTimeEntries, Err: fmt.Errorf("negative time entry on %s", e.Date)}
						}
						days += e.Days
					}
					vars[VarDays] = days
					vars["entry_count"] = len(entries)
					return days, nil
				},
			},
			{
				Name: StepRate,
				Input: func(vars Vars) map[string]any {
					return map[string]any{
						"internal_id": vars.String(VarInternalID),
						"delivery_id": vars.String("delivery_id"),
					}
				},
				Run: func(ctx context.Context, vars Vars) (any, error) {
					internalID := vars.String(VarInternalID)
					deliveryID := vars.String("delivery_id")
					if internalID == "" || deliveryID == "" {
						return nil, &MalformedError{Op: StepRate, Err: fmt.Errorf("missing prior chain outputs")}
					}
					rate, err := client.Rate(ctx, internalID, deliveryID)
					if err != nil {
						return nil, err
					}
					days, ok := vars.Float(VarDays)
					if !ok {
						return nil, &MalformedError{Op: StepRate, Err: fmt.Errorf("missing %s from prior step", VarDays)}
					}
					vars["rate"] = rate
					vars[VarCost] = days * rate
					return rate, nil
				},
			},
		}
	}
}
