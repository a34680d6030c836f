package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupBudget_UnderLimit(t *testing.T) {
	b := NewLookupBudget(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Check("prj-1", EndpointTimes))
		b.Record("prj-1", EndpointTimes)
	}
	assert.Error(t, b.Check("prj-1", EndpointTimes))
}

func TestLookupBudget_PerProjectIsolation(t *testing.T) {
	b := NewLookupBudget(1, time.Minute)

	b.Record("prj-1", EndpointTimes)
	assert.Error(t, b.Check("prj-1", EndpointTimes))
	assert.NoError(t, b.Check("prj-2", EndpointTimes))
	assert.NoError(t, b.Check("prj-1", EndpointRates))
}

func TestLookupBudget_WindowExpiry(t *testing.T) {
	b := NewLookupBudget(1, time.Minute)
	current := time.Now()
	b.now = func() time.Time { return current }

	b.Record("prj-1", EndpointEntities)
	require.Error(t, b.Check("prj-1", EndpointEntities))

	current = current.Add(2 * time.Minute)
	assert.NoError(t, b.Check("prj-1", EndpointEntities))
}
