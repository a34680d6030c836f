// Package resolver executes the lookup chain that derives an entity's
// authoritative days and cost from the CRM system of record. The concrete
// chain shape is supplied by a ChainBuilder; the resolver only owns
// sequencing, retry, and trace accumulation.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/invoiceops/reconcile-go/internal/domain"
)

// Well-known variable names a chain must populate.
const (
	VarInternalID = "internal_id"
	VarDays       = "days"
	VarCost       = "cost"
)

// Vars is the per-entity variable bag accumulated step by step. It is owned
// by a single resolution and never shared across entities.
type Vars map[string]any

// Float extracts a float64 by key, returning ok=false when missing or of
// the wrong type.
func (v Vars) Float(key string) (float64, bool) {
	switch n := v[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// String extracts a string by key, returning "" when missing.
func (v Vars) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Step is one call in the lookup chain. Input is recorded in the trace for
// auditability; Run may read any prior step's output from vars.
type Step struct {
	Name  string
	Input func(vars Vars) map[string]any
	Run   func(ctx context.Context, vars Vars) (any, error)
}

// ChainBuilder produces the ordered steps for one entity's resolution.
type ChainBuilder func(entityRef, projectRef string, period domain.Period) []Step

// RetryPolicy bounds the per-step retry behavior for transient errors.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
	CallTimeout     time.Duration
}

// DefaultRetryPolicy retries 3 times with 2s/4s/8s backoff and a 10s
// per-call timeout, matching the CRM collaborator's rate-limit guidance.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 2 * time.Second,
		Multiplier:      2,
		CallTimeout:     10 * time.Second,
	}
}

// Outcome carries the authoritative values plus the full audit trail.
type Outcome struct {
	CRMID string
	Days  float64
	Cost  float64
	Vars  Vars
	Trace []domain.LookupStep
}

// Resolver runs lookup chains under a retry policy.
type Resolver struct {
	build  ChainBuilder
	policy RetryPolicy
}

// New creates a Resolver from a chain builder and retry policy.
func New(build ChainBuilder, policy RetryPolicy) *Resolver {
	return &Resolver{build: build, policy: policy}
}

// Resolve executes the chain for one entity. Every intermediate value is
// kept in vars and every call is recorded in the trace, including failed
// attempts; losing an intermediate would break the dependent downstream
// call and make the outcome unauditable.
//
// Failure semantics: NotFoundError is returned as-is (terminal, not
// retried); TransientError is retried per the policy; anything else is
// wrapped as MalformedError. The partial outcome (vars + trace) is always
// returned so the caller can attach it to the entity's record.
func (r *Resolver) Resolve(ctx context.Context, entityRef, projectRef string, period domain.Period) (Outcome, error) {
	vars := Vars{}
	out := Outcome{Vars: vars}

	for _, step := range r.build(entityRef, projectRef, period) {
		rec := domain.LookupStep{Name: step.Name}
		if step.Input != nil {
			rec.Input = step.Input(vars)
		}

		value, attempts, err := r.runStep(ctx, step, vars)
		rec.Attempts = attempts
		if err != nil {
			rec.Err = err.Error()
			out.Trace = append(out.Trace, rec)
			return out, r.classify(step.Name, err)
		}

		rec.Output = value
		out.Trace = append(out.Trace, rec)
		vars[step.Name] = value
	}

	days, ok := vars.Float(VarDays)
	if !ok {
		return out, &MalformedError{Op: "chain", Err: fmt.Errorf("chain produced no %q value", VarDays)}
	}
	cost, ok := vars.Float(VarCost)
	if !ok {
		return out, &MalformedError{Op: "chain", Err: fmt.Errorf("chain produced no %q value", VarCost)}
	}

	out.Days = days
	out.Cost = cost
	out.CRMID = vars.String(VarInternalID)
	return out, nil
}

// runStep executes one step with per-call timeout and bounded exponential
// backoff on transient errors. Returns the attempt count for the trace.
func (r *Resolver) runStep(ctx context.Context, step Step, vars Vars) (any, int, error) {
	attempts := 0

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.policy.InitialInterval
	expo.Multiplier = r.policy.Multiplier
	expo.RandomizationFactor = 0

	value, err := backoff.Retry(ctx, func() (any, error) {
		attempts++
		callCtx := ctx
		if r.policy.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.policy.CallTimeout)
			defer cancel()
		}

		v, err := step.Run(callCtx, vars)
		if err != nil {
			if IsTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return v, nil
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
	)
	return value, attempts, err
}

// classify maps a step failure onto the error taxonomy: not-found and
// exhausted transients pass through, everything else becomes malformed.
func (r *Resolver) classify(op string, err error) error {
	if IsNotFound(err) || IsTransient(err) {
		return err
	}
	var malformed *MalformedError
	if errors.As(err, &malformed) {
		return err
	}
	return &MalformedError{Op: op, Err: err}
}
