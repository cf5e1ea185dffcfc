package gateway

import (
	"sync"
	"time"
)

// WindowLimiter is a fixed-window per-caller counter. A caller gets
// max calls per window; the count resets when the next window opens.
type WindowLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	start time.Time
	count int
}

func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		max:     max,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one slot for the caller and reports whether the call
// may proceed.
func (l *WindowLimiter) Allow(caller string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.buckets[caller]
	if !ok || now.Sub(b.start) >= l.window {
		l.pruneLocked(now)
		l.buckets[caller] = &bucket{start: now, count: 1}
		return true
	}
	if b.count >= l.max {
		return false
	}
	b.count++
	return true
}

// pruneLocked drops buckets whose window has long expired, so the map
// does not grow with every caller ever seen.
func (l *WindowLimiter) pruneLocked(now time.Time) {
	for caller, b := range l.buckets {
		if now.Sub(b.start) >= 2*l.window {
			delete(l.buckets, caller)
		}
	}
}

// SetClock overrides the time source, for tests.
func (l *WindowLimiter) SetClock(now func() time.Time) { l.now = now }
