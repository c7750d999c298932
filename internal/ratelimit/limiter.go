// Package ratelimit throttles outbound registry traffic with a
// per-provider sliding window, preventing boundary bursts that a
// fixed-window counter would allow.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports an admission decision.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter admits at most limit calls per window per key.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
}

type Option func(*Limiter)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*slidingWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Allow records one call against the key if capacity remains. When the
// window is full, RetryAfter says how long until the oldest recorded
// call slides out.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	sw := l.windows[key]
	if sw == nil {
		sw = &slidingWindow{}
		l.windows[key] = sw
	}
	sw.cleanup(now, l.window)

	if len(sw.timestamps) < l.limit {
		sw.timestamps = append(sw.timestamps, now)
		return Result{
			Allowed:   true,
			Remaining: l.limit - len(sw.timestamps),
			ResetAt:   sw.timestamps[0].Add(l.window),
		}
	}

	retryAfter := sw.timestamps[0].Add(l.window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Result{
		Allowed:    false,
		RetryAfter: retryAfter,
		ResetAt:    sw.timestamps[0].Add(l.window),
	}
}

// Count returns the in-window call count for a key.
func (l *Limiter) Count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	sw := l.windows[key]
	if sw == nil {
		return 0
	}
	sw.cleanup(l.now(), l.window)
	return len(sw.timestamps)
}

// Reset clears the window for a key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
