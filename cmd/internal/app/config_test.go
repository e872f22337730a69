package app

import (
	"testing"
	"time"

	"authcore/cmd/security/password"
	"authcore/cmd/security/token"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrom(vars map[string]string) (Config, error) {
	return loadConfig(env.Options{Prefix: EnvPrefix, Environment: vars})
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, DenylistOff, cfg.Denylist)
	assert.Equal(t, "auth-service", cfg.NATSQueue)
	assert.Equal(t, 10, cfg.NATSLoginLimit)
	assert.Equal(t, time.Minute, cfg.NATSLoginWindow)
	assert.Equal(t, 5*time.Second, cfg.ReadHeaderTimeout)
	assert.Equal(t, time.Duration(0), cfg.PurgeInterval)

	assert.Equal(t, token.AlgorithmHS256, cfg.Token.Algorithm)
	assert.Equal(t, "authcore", cfg.Token.Issuer)
	assert.Equal(t, password.AlgorithmArgon2id, cfg.Password.Algorithm)
	assert.Equal(t, 6, cfg.Password.Policy.MinLength)
	assert.Equal(t, 15*time.Minute, cfg.Session.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.RefreshTTL)
	assert.False(t, cfg.Session.ReuseDetection)
	assert.Equal(t, 20, cfg.API.LoginIPMax)
	assert.Equal(t, "authcore", cfg.DBSchema)
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := loadFrom(map[string]string{
		"AUTHCORE_STORAGE":                 "sqlite",
		"AUTHCORE_SQLITE_PATH":             "/var/lib/authcore/auth.db",
		"AUTHCORE_LOG_FORMAT":              "console",
		"AUTHCORE_TOKEN_ISSUER":            "auth.example.com",
		"AUTHCORE_PASSWORD_ALGORITHM":      "bcrypt",
		"AUTHCORE_BCRYPT_COST":             "12",
		"AUTHCORE_PASSWORD_MIN_LEN":        "10",
		"AUTHCORE_SESSION_ACCESS_TTL":      "5m",
		"AUTHCORE_SESSION_REUSE_DETECTION": "true",
		"AUTHCORE_HTTP_LOGIN_IP_MAX":       "3",
		"AUTHCORE_HTTP_TRUST_PROXY":        "true",
		"AUTHCORE_DENYLIST":                "redis",
		"AUTHCORE_REDIS_ADDR":              "localhost:6379",
		"AUTHCORE_REDIS_DB":                "2",
		"AUTHCORE_NATS_URL":                "nats://localhost:4222",
		"AUTHCORE_PURGE_INTERVAL":          "1h",
		"AUTHCORE_DB_SCHEMA":               "tenant_a",
	})
	require.NoError(t, err)

	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, "/var/lib/authcore/auth.db", cfg.SQLitePath)
	assert.Equal(t, "tenant_a", cfg.DBSchema)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "auth.example.com", cfg.Token.Issuer)
	assert.Equal(t, password.AlgorithmBcrypt, cfg.Password.Algorithm)
	assert.Equal(t, 12, cfg.Password.BcryptCost)
	assert.Equal(t, 10, cfg.Password.Policy.MinLength)
	assert.Equal(t, 5*time.Minute, cfg.Session.AccessTTL)
	assert.True(t, cfg.Session.ReuseDetection)
	assert.Equal(t, 3, cfg.API.LoginIPMax)
	assert.True(t, cfg.API.TrustProxy)
	assert.Equal(t, DenylistRedis, cfg.Denylist)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, time.Hour, cfg.PurgeInterval)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url":    {"AUTHCORE_STORAGE": "postgres"},
		"unknown storage":         {"AUTHCORE_STORAGE": "mongo"},
		"unknown log level":       {"AUTHCORE_LOG_LEVEL": "loud"},
		"redis without addr":      {"AUTHCORE_DENYLIST": "redis"},
		"refresh below access":    {"AUTHCORE_SESSION_ACCESS_TTL": "2h", "AUTHCORE_SESSION_REFRESH_TTL": "1h"},
		"bad duration":            {"AUTHCORE_PURGE_INTERVAL": "soon"},
		"min conns over max":      {"AUTHCORE_DB_MAX_CONNS": "2", "AUTHCORE_DB_MIN_CONNS": "5"},
		"unsafe schema":           {"AUTHCORE_DB_SCHEMA": "auth; drop"},
		"unknown token algorithm": {"AUTHCORE_TOKEN_ALGORITHM": "rs256"},
	}

	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadFrom(vars)
			assert.Error(t, err)
		})
	}
}
