package natsrpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowLimiter(t *testing.T) {
	l := newWindowLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.Allow("a", now))
	assert.True(t, l.Allow("a", now.Add(time.Second)))
	assert.False(t, l.Allow("a", now.Add(2*time.Second)))
	assert.True(t, l.Allow("b", now.Add(2*time.Second)), "keys are independent")

	// The first event leaves the window.
	assert.True(t, l.Allow("a", now.Add(time.Minute+500*time.Millisecond)))
	assert.False(t, l.Allow("a", now.Add(time.Minute+600*time.Millisecond)))
}

func TestWindowLimiter_Disabled(t *testing.T) {
	l := newWindowLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("a", time.Now()))
	}
}

func TestWindowLimiter_Prune(t *testing.T) {
	l := newWindowLimiter(5, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	l.Allow("old", now)
	l.Allow("fresh", now.Add(2*time.Minute))
	l.prune(now.Add(2 * time.Minute))

	assert.NotContains(t, l.events, "old")
	assert.Contains(t, l.events, "fresh")
}
