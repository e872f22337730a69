package natsrpc

import (
	"sync"
	"time"
)

// windowLimiter is a keyed sliding-window limiter. Bus requests carry no
// client address, so auth.login is limited per normalized email.
type windowLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	limit  int
	window time.Duration
	calls  int
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &windowLimiter{
		events: make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// Allow reports whether an event for key at now is permitted and records it
// if so. A nil limiter allows everything.
func (l *windowLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%1024 == 0 {
		l.prune(now)
	}

	cut := now.Add(-l.window)
	events := l.events[key]
	dst := events[:0]
	for _, t := range events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}

	if len(dst) >= l.limit {
		l.events[key] = dst
		return false
	}
	l.events[key] = append(dst, now)
	return true
}

// prune drops keys with no event inside the window. Caller holds mu.
func (l *windowLimiter) prune(now time.Time) {
	cut := now.Add(-l.window)
	for key, events := range l.events {
		if len(events) == 0 || !events[len(events)-1].After(cut) {
			delete(l.events, key)
		}
	}
}
