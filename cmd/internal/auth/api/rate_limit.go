package authapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// evaluateWindowThrottle blocks once maxFailures fall inside the trailing
// window. retry is how long until the oldest of them leaves the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, maxFailures int, window time.Duration) (bool, time.Duration) {
	if maxFailures <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)

	var (
		count  int
		oldest time.Time
	)
	for _, f := range failures {
		if f.Before(cut) {
			continue
		}
		count++
		if oldest.IsZero() || f.Before(oldest) {
			oldest = f
		}
	}
	if count < maxFailures {
		return false, 0
	}
	return true, oldest.Add(window).Sub(now)
}

// evaluateProgressiveLockout applies the first tier whose threshold is met
// and whose lockout, counted from the latest failure, has not yet elapsed.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}
	latest := failures[0]
	for _, f := range failures[1:] {
		if f.After(latest) {
			latest = f
		}
	}

	for _, tier := range tiers {
		if tier.Threshold <= 0 || tier.Duration <= 0 || len(failures) < tier.Threshold {
			continue
		}
		until := latest.Add(tier.Duration)
		if until.After(now) {
			return true, until.Sub(now)
		}
	}
	return false, 0
}

// loginLimiter remembers recent failed logins per client IP and per email.
// State is process-local.
type loginLimiter struct {
	cfg Config

	mu      sync.Mutex
	byIP    map[string][]time.Time
	byIdent map[string][]time.Time
}

func newLoginLimiter(cfg Config) *loginLimiter {
	return &loginLimiter{
		cfg:     cfg,
		byIP:    make(map[string][]time.Time),
		byIdent: make(map[string][]time.Time),
	}
}

// check reports whether a login from ip for ident must be refused now.
func (l *loginLimiter) check(ip, ident string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ip != "" {
		failures := prune(l.byIP, ip, now.Add(-l.cfg.LoginIPWindow))
		if blocked, retry := evaluateWindowThrottle(now, failures, l.cfg.LoginIPMax, l.cfg.LoginIPWindow); blocked {
			return true, retry
		}
	}
	if ident != "" {
		failures := prune(l.byIdent, ident, now.Add(-l.cfg.LoginIdentifierWindow))
		if blocked, retry := evaluateProgressiveLockout(now, failures, l.cfg.lockoutTiers()); blocked {
			return true, retry
		}
	}
	return false, 0
}

func (l *loginLimiter) recordFailure(ip, ident string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ip != "" {
		l.byIP[ip] = append(l.byIP[ip], now)
	}
	if ident != "" {
		l.byIdent[ident] = append(l.byIdent[ident], now)
	}
}

// recordSuccess forgets the email's failures. IP history stays.
func (l *loginLimiter) recordSuccess(ident string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byIdent, ident)
}

// prune drops entries older than cut and returns what remains.
func prune(m map[string][]time.Time, key string, cut time.Time) []time.Time {
	old := m[key]
	kept := old[:0]
	for _, t := range old {
		if !t.Before(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(m, key)
		return nil
	}
	m[key] = kept
	return kept
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
