package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AdmitsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		res := l.Allow("nin")
		assert.True(t, res.Allowed, "call %d", i)
	}

	res := l.Allow("nin")
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)

	assert.True(t, l.Allow("nin").Allowed)
	assert.False(t, l.Allow("nin").Allowed)
	assert.True(t, l.Allow("cac").Allowed)
}

func TestLimiter_WindowSlides(t *testing.T) {
	now := time.Now()
	l := New(2, time.Minute, WithClock(func() time.Time { return now }))

	assert.True(t, l.Allow("nin").Allowed)
	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("nin").Allowed)
	assert.False(t, l.Allow("nin").Allowed)

	// The first call slides out of the window; one slot frees up.
	now = now.Add(31 * time.Second)
	assert.True(t, l.Allow("nin").Allowed)
	assert.Equal(t, 2, l.Count("nin"))
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Minute)
	assert.True(t, l.Allow("nin").Allowed)
	l.Reset("nin")
	assert.True(t, l.Allow("nin").Allowed)
}
