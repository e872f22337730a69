// Package cache holds the Redis-backed pieces of the service.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authcore/cmd/internal/auth/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DenylistPrefix namespaces denylisted jtis.
const DenylistPrefix = "authcore:deny:jti:"

// RedisDenylist stores denied access-token jtis as keys that expire together
// with the token, so the set never needs sweeping.
type RedisDenylist struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
	log    *zap.Logger
}

// DenylistOption configures a RedisDenylist.
type DenylistOption func(*RedisDenylist)

// WithPrefix overrides DenylistPrefix.
func WithPrefix(prefix string) DenylistOption {
	return func(d *RedisDenylist) {
		if p := strings.TrimSpace(prefix); p != "" {
			d.prefix = p
		}
	}
}

// WithClock overrides the time source used to compute key TTLs.
func WithClock(now func() time.Time) DenylistOption {
	return func(d *RedisDenylist) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) DenylistOption {
	return func(d *RedisDenylist) {
		if l != nil {
			d.log = l
		}
	}
}

// NewRedisDenylist wraps client. The client is owned by the caller.
func NewRedisDenylist(client redis.UniversalClient, opts ...DenylistOption) (*RedisDenylist, error) {
	if client == nil {
		return nil, errors.New("cache: nil redis client")
	}
	d := &RedisDenylist{
		client: client,
		prefix: DenylistPrefix,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *RedisDenylist) Deny(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	// Redis rounds PX to milliseconds; anything shorter would be a no-op.
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := d.client.Set(ctx, d.prefix+jti, "1", ttl).Err(); err != nil {
		d.log.Error("cache.denylist.set.fail", zap.String("jti", jti), zap.Error(err))
		return fmt.Errorf("denylist set: %w", err)
	}
	return nil
}

func (d *RedisDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("denylist lookup: %w", err)
	}
	return n > 0, nil
}

var _ session.Denylist = (*RedisDenylist)(nil)
