package session

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is the fixed policy handed to NewManager.
type Config struct {
	// AccessTTL is the absolute lifetime of access tokens.
	AccessTTL time.Duration `env:"ACCESS_TTL" validate:"gt=0"`

	// RefreshTTL is the absolute lifetime of refresh tokens and their sessions.
	RefreshTTL time.Duration `env:"REFRESH_TTL" validate:"gt=0,gtfield=AccessTTL"`

	// HashCost overrides the password work factor (argon2id iterations or
	// bcrypt cost). Zero keeps the hasher's own setting.
	HashCost int `env:"HASH_COST" validate:"gte=0,lte=31"`

	// ReuseDetection revokes every session of a user when a refresh token
	// that was already rotated is presented again.
	ReuseDetection bool `env:"REUSE_DETECTION"`
}

// DefaultConfig returns 15 minute access tokens and 7 day refresh tokens.
func DefaultConfig() Config {
	return Config{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// Validate checks the invariants of c.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

// LoadConfigFromEnv overlays environment variables (with prefix) on
// DefaultConfig:
//   - <prefix>ACCESS_TTL, <prefix>REFRESH_TTL (Go durations)
//   - <prefix>HASH_COST
//   - <prefix>REUSE_DETECTION
func LoadConfigFromEnv(prefix string) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
