// Package testutil provides in-memory stub collaborators for tests and for
// stub-mode workers.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/resolver"
)

type stubWorker struct {
	internalID string
	deliveryID string
	rate       float64
	entries    []resolver.TimeEntry
	failure    error
}

// StubCRM satisfies resolver.CRMClient from in-memory data. Safe for
// concurrent use; an empty StubCRM answers not-found for every reference.
type StubCRM struct {
	mu         sync.RWMutex
	byExternal map[string]*stubWorker
	byInternal map[string]*stubWorker

	// Calls counts invocations per method name, for concurrency assertions.
	calls map[string]int
}

// NewStubCRM creates an empty StubCRM.
func NewStubCRM() *StubCRM {
	return &StubCRM{
		byExternal: make(map[string]*stubWorker),
		byInternal: make(map[string]*stubWorker),
		calls:      make(map[string]int),
	}
}

// AddWorker registers a worker with its CRM identifiers, daily rate, and
// time entries for the period.
func (s *StubCRM) AddWorker(externalRef, internalID, deliveryID string, rate float64, entries []resolver.TimeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &stubWorker{internalID: internalID, deliveryID: deliveryID, rate: rate, entries: entries}
	s.byExternal[externalRef] = w
	s.byInternal[internalID] = w
}

// FailWith injects an error returned by TimeEntries for the given worker,
// simulating a mid-chain fault after identity resolution succeeded.
func (s *StubCRM) FailWith(externalRef string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.byExternal[externalRef]; ok {
		w.failure = err
	}
}

// Calls returns the invocation count for a CRM method name.
func (s *StubCRM) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[method]
}

func (s *StubCRM) record(method string) {
	s.mu.Lock()
	s.calls[method]++
	s.mu.Unlock()
}

func (s *StubCRM) ResolveEntity(ctx context.Context, externalRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.record("ResolveEntity")
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.byExternal[externalRef]
	if !ok {
		return "", &resolver.NotFoundError{Ref: externalRef}
	}
	return w.internalID, nil
}

func (s *StubCRM) Delivery(ctx context.Context, internalID, projectRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.record("Delivery")
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.byInternal[internalID]
	if !ok {
		return "", &resolver.NotFoundError{Ref: internalID}
	}
	return w.deliveryID, nil
}

func (s *StubCRM) TimeEntries(ctx context.Context, internalID, deliveryID string, _ domain.Period) ([]resolver.TimeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.record("TimeEntries")
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.byInternal[internalID]
	if !ok {
		return nil, &resolver.NotFoundError{Ref: internalID}
	}
	if w.failure != nil {
		return nil, w.failure
	}
	return w.entries, nil
}

func (s *StubCRM) Rate(ctx context.Context, internalID, deliveryID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.record("Rate")
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.byInternal[internalID]
	if !ok {
		return 0, &resolver.NotFoundError{Ref: internalID}
	}
	return w.rate, nil
}

// SeedMatching registers n workers whose CRM data exactly matches a
// declared submission of days×rate, and returns the declared entities.
func (s *StubCRM) SeedMatching(n int, days, rate float64) []domain.DeclaredEntity {
	entities := make([]domain.DeclaredEntity, 0, n)
	for i := 0; i < n; i++ {
		ref := fmt.Sprintf("w-%d", i)
		s.AddWorker(ref, fmt.Sprintf("crm-%d", i), fmt.Sprintf("d-%d", i), rate,
			[]resolver.TimeEntry{{Date: "2026-07-02", Days: days}})
		entities = append(entities, domain.DeclaredEntity{
			ExternalRef:  ref,
			DeclaredDays: days,
			DeclaredCost: days * rate,
		})
	}
	return entities
}
