package app

import (
	"errors"
	"fmt"
	"time"

	authapi "authcore/cmd/internal/auth/api"
	"authcore/cmd/internal/auth/session"
	"authcore/cmd/internal/cache"
	"authcore/cmd/internal/storage"
	"authcore/cmd/internal/storage/migrations"
	"authcore/cmd/security/password"
	"authcore/cmd/security/token"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "AUTHCORE_"

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Denylist modes.
const (
	DenylistOff    = "off"
	DenylistMemory = "memory"
	DenylistRedis  = "redis"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080" validate:"required"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn warning error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"HTTP_MAX_HEADER_BYTES" envDefault:"1048576" validate:"gte=0"`

	Storage     string `env:"STORAGE" envDefault:"memory" validate:"oneof=memory sqlite postgres"`
	DatabaseURL string `env:"DATABASE_URL" validate:"required_if=Storage postgres"`
	DBSchema    string `env:"DB_SCHEMA" envDefault:"authcore" validate:"required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10" validate:"gte=0"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"0" validate:"gte=0"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"authcore.db" validate:"required_if=Storage sqlite"`

	// ReadinessRequireDB makes /readyz fail unless a SQL backend is configured
	// and reachable.
	ReadinessRequireDB bool `env:"READINESS_REQUIRE_DB"`

	// RequireTokenHMAC refuses to start unless TokenHMACKey is set, so refresh
	// tokens are never stored under a plain SHA-256.
	RequireTokenHMAC bool   `env:"REQUIRE_TOKEN_HMAC"`
	TokenHMACKey     string `env:"TOKEN_HMAC_KEY"`

	Denylist string       `env:"DENYLIST" envDefault:"off" validate:"oneof=off memory redis"`
	Redis    cache.Config `envPrefix:"REDIS_"`

	NATSURL            string        `env:"NATS_URL"`
	NATSQueue          string        `env:"NATS_QUEUE" envDefault:"auth-service" validate:"required"`
	NATSRequestTimeout time.Duration `env:"NATS_REQUEST_TIMEOUT" envDefault:"5s" validate:"gt=0"`

	// NATSLoginLimit caps auth.login requests per email per NATSLoginWindow.
	// Zero disables it.
	NATSLoginLimit  int           `env:"NATS_LOGIN_LIMIT" envDefault:"10" validate:"gte=0"`
	NATSLoginWindow time.Duration `env:"NATS_LOGIN_WINDOW" envDefault:"1m" validate:"gt=0"`

	// PurgeInterval enables the expired-session janitor when positive.
	PurgeInterval  time.Duration `env:"PURGE_INTERVAL" envDefault:"0s" validate:"gte=0"`
	PurgeRetention time.Duration `env:"PURGE_RETENTION" envDefault:"24h" validate:"gte=0"`

	Token    token.Config
	Password password.Config
	Session  session.Config `envPrefix:"SESSION_"`
	API      authapi.Config `envPrefix:"HTTP_"`
}

// DefaultConfig returns the defaults LoadConfig starts from. The env tags
// supply the rest.
func DefaultConfig() Config {
	return Config{
		DBSchema: migrations.DefaultSchema,
		Password: password.DefaultConfig(),
		Session:  session.DefaultConfig(),
		API:      authapi.DefaultConfig(),
	}
}

// LoadConfig reads AUTHCORE_* variables on top of DefaultConfig and
// validates the result.
func LoadConfig() (Config, error) {
	return loadConfig(env.Options{Prefix: EnvPrefix})
}

func loadConfig(opts env.Options) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and the rules that span sections.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Denylist == DenylistRedis && !c.Redis.Enabled() {
		return errors.New("config: AUTHCORE_DENYLIST=redis requires AUTHCORE_REDIS_ADDR")
	}
	if !storage.PGIdentIsValid(c.DBSchema) {
		return fmt.Errorf("config: AUTHCORE_DB_SCHEMA %q is not a valid identifier", c.DBSchema)
	}
	if c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		return errors.New("config: AUTHCORE_DB_MIN_CONNS exceeds AUTHCORE_DB_MAX_CONNS")
	}
	return nil
}
