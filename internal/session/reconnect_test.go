package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayForDoublesUpToTheCap(t *testing.T) {
	policy := reconnectPolicy{base: time.Second, cap: 30 * time.Second, maxAttempts: 10}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{7, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.delayFor(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestScheduleRefusesWhileAttemptInFlight(t *testing.T) {
	c := reconnectController{policy: reconnectPolicy{base: time.Hour, cap: time.Hour, maxAttempts: 5}}

	_, ok, exhausted := c.schedule(func() {})
	require.True(t, ok)
	require.False(t, exhausted)

	// Second disconnect while the first attempt is still pending.
	_, ok, exhausted = c.schedule(func() {})
	assert.False(t, ok)
	assert.False(t, exhausted)
	assert.Equal(t, 1, c.attempts)

	c.cancel()
}

func TestScheduleExhaustsAfterMaxAttempts(t *testing.T) {
	c := reconnectController{policy: reconnectPolicy{base: time.Millisecond, cap: time.Millisecond, maxAttempts: 2}}

	var fired atomic.Int32
	run := func() { fired.Add(1) }

	_, ok, exhausted := c.schedule(run)
	require.True(t, ok)
	require.False(t, exhausted)
	c.settle()

	_, ok, exhausted = c.schedule(run)
	require.True(t, ok)
	require.False(t, exhausted)
	c.settle()

	_, ok, exhausted = c.schedule(run)
	assert.False(t, ok)
	assert.True(t, exhausted)

	assert.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestResetClearsAttemptBudget(t *testing.T) {
	c := reconnectController{policy: reconnectPolicy{base: time.Hour, cap: time.Hour, maxAttempts: 1}}

	_, ok, _ := c.schedule(func() {})
	require.True(t, ok)

	c.reset()
	assert.Equal(t, 0, c.attempts)

	// Budget is fresh again after a successful session.
	_, ok, exhausted := c.schedule(func() {})
	assert.True(t, ok)
	assert.False(t, exhausted)
	c.cancel()
}
