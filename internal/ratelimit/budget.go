package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// LookupBudget tracks per-project CRM lookup counts within time windows,
// capping how much load one runaway reconciliation job can generate.
type LookupBudget struct {
	mu     sync.Mutex
	counts map[string]*windowCounter

	maxPerWindow int
	windowSize   time.Duration
	now          func() time.Time
}

type windowCounter struct {
	count     int
	windowEnd time.Time
}

// NewLookupBudget creates a budget limiter.
// maxPerWindow limits calls per (projectRef, endpoint) within windowSize.
func NewLookupBudget(maxPerWindow int, windowSize time.Duration) *LookupBudget {
	return &LookupBudget{
		counts:       make(map[string]*windowCounter),
		maxPerWindow: maxPerWindow,
		windowSize:   windowSize,
		now:          time.Now,
	}
}

func budgetKey(projectRef, endpoint string) string {
	return projectRef + "|" + endpoint
}

// Check returns an error if the project has exceeded the budget for the endpoint.
func (b *LookupBudget) Check(projectRef, endpoint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := budgetKey(projectRef, endpoint)
	wc, ok := b.counts[key]
	if !ok || b.now().After(wc.windowEnd) {
		return nil // no window or expired window
	}
	if wc.count >= b.maxPerWindow {
		return fmt.Errorf("lookup budget exceeded: project %s endpoint %s (%d/%d in window)",
			projectRef, endpoint, wc.count, b.maxPerWindow)
	}
	return nil
}

// Record records a lookup for the project.
func (b *LookupBudget) Record(projectRef, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := budgetKey(projectRef, endpoint)
	wc, ok := b.counts[key]
	if !ok || b.now().After(wc.windowEnd) {
		b.counts[key] = &windowCounter{
			count:     1,
			windowEnd: b.now().Add(b.windowSize),
		}
		return
	}
	wc.count++
}
