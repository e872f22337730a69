package session

import (
	"context"
	"sync"
	"time"
)

// Denylist records access-token jtis that must stop validating before their
// embedded expiry. Entries only need to outlive the access-token TTL.
type Denylist interface {
	Deny(ctx context.Context, jti string, until time.Time) error
	IsDenied(ctx context.Context, jti string) (bool, error)
}

// MemoryDenylist is a process-local Denylist. Expired entries are dropped
// lazily on lookup and on every Deny.
type MemoryDenylist struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]time.Time
}

// NewMemoryDenylist returns an empty denylist. A nil now uses the wall clock.
func NewMemoryDenylist(now func() time.Time) *MemoryDenylist {
	if now == nil {
		now = time.Now
	}
	return &MemoryDenylist{
		now:     now,
		entries: make(map[string]time.Time),
	}
}

func (d *MemoryDenylist) Deny(ctx context.Context, jti string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.entries {
		if !exp.After(now) {
			delete(d.entries, k)
		}
	}
	if until.After(now) {
		d.entries[jti] = until
	}
	return nil
}

func (d *MemoryDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.entries[jti]
	if !ok {
		return false, nil
	}
	if !exp.After(d.now()) {
		delete(d.entries, jti)
		return false, nil
	}
	return true, nil
}

var _ Denylist = (*MemoryDenylist)(nil)
