// Package ratelimit provides token-bucket limiters for CRM endpoints and
// per-project lookup budgets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Endpoint names used by the CRM connector.
const (
	EndpointEntities   = "entities"
	EndpointDeliveries = "deliveries"
	EndpointTimes      = "times"
	EndpointRates      = "rates"
)

// EndpointRates configures per-endpoint request rates (requests per second).
type RateConfig struct {
	Entities   float64
	Deliveries float64
	Times      float64
	Rates      float64
}

// DefaultEndpointRates returns conservative Boond API rate limits. The
// times endpoint is the heaviest query on their side and throttles first.
func DefaultEndpointRates() RateConfig {
	return RateConfig{
		Entities:   10,
		Deliveries: 10,
		Times:      5,
		Rates:      10,
	}
}

// EndpointLimiter rate-limits CRM calls per endpoint using token buckets.
type EndpointLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewEndpointLimiter creates a limiter with the given per-endpoint rates.
func NewEndpointLimiter(rates RateConfig) *EndpointLimiter {
	limiters := map[string]*rate.Limiter{
		EndpointEntities:   rate.NewLimiter(rate.Limit(rates.Entities), int(rates.Entities)),
		EndpointDeliveries: rate.NewLimiter(rate.Limit(rates.Deliveries), int(rates.Deliveries)),
		EndpointTimes:      rate.NewLimiter(rate.Limit(rates.Times), int(rates.Times)),
		EndpointRates:      rate.NewLimiter(rate.Limit(rates.Rates), int(rates.Rates)),
	}
	return &EndpointLimiter{limiters: limiters}
}

// Wait blocks until a token is available for the named endpoint, or ctx is
// cancelled.
func (el *EndpointLimiter) Wait(ctx context.Context, endpoint string) error {
	el.mu.RLock()
	limiter, ok := el.limiters[endpoint]
	el.mu.RUnlock()
	if !ok {
		return nil // unknown endpoint = no limit
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", endpoint, err)
	}
	return nil
}
