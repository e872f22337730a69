package authapi

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config controls HTTP auth behavior and abuse limits.
type Config struct {
	TrustProxy   bool  `env:"TRUST_PROXY"`
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" validate:"gt=0"`

	// Per-IP fixed window on failed logins. LoginIPMax 0 disables it.
	LoginIPMax    int           `env:"LOGIN_IP_MAX" validate:"gte=0"`
	LoginIPWindow time.Duration `env:"LOGIN_IP_WINDOW" validate:"gt=0"`

	// Failures per email are remembered this long and drive the lockout tiers.
	LoginIdentifierWindow time.Duration `env:"LOGIN_IDENTIFIER_WINDOW" validate:"gt=0"`

	LockoutShortThreshold  int           `env:"LOGIN_LOCKOUT_SHORT_THRESHOLD" validate:"gte=0"`
	LockoutShortDuration   time.Duration `env:"LOGIN_LOCKOUT_SHORT_DURATION" validate:"gte=0"`
	LockoutLongThreshold   int           `env:"LOGIN_LOCKOUT_LONG_THRESHOLD" validate:"gte=0"`
	LockoutLongDuration    time.Duration `env:"LOGIN_LOCKOUT_LONG_DURATION" validate:"gte=0"`
	LockoutSevereThreshold int           `env:"LOGIN_LOCKOUT_SEVERE_THRESHOLD" validate:"gte=0"`
	LockoutSevereDuration  time.Duration `env:"LOGIN_LOCKOUT_SEVERE_DURATION" validate:"gte=0"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:           1 << 20, // 1 MiB
		LoginIPMax:             20,
		LoginIPWindow:          5 * time.Minute,
		LoginIdentifierWindow:  2 * time.Hour,
		LockoutShortThreshold:  5,
		LockoutShortDuration:   5 * time.Minute,
		LockoutLongThreshold:   10,
		LockoutLongDuration:    30 * time.Minute,
		LockoutSevereThreshold: 20,
		LockoutSevereDuration:  2 * time.Hour,
	}
}

// LoadConfigFromEnv overlays <prefix>-named variables on DefaultConfig.
func LoadConfigFromEnv(prefix string) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("auth api config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("auth api config: %w", err)
	}
	return cfg, nil
}

func (c Config) lockoutTiers() []lockoutTier {
	// Most severe first; the first tier that still applies wins.
	return []lockoutTier{
		{Threshold: c.LockoutSevereThreshold, Duration: c.LockoutSevereDuration},
		{Threshold: c.LockoutLongThreshold, Duration: c.LockoutLongDuration},
		{Threshold: c.LockoutShortThreshold, Duration: c.LockoutShortDuration},
	}
}
