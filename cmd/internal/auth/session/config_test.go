package session

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv("AUTHCORE_TEST_UNSET_")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccessTTL != 15*time.Minute || cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ReuseDetection {
		t.Fatalf("reuse detection must default to off")
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("AUTHCORE_AUTH_ACCESS_TTL", "5m")
	t.Setenv("AUTHCORE_AUTH_REFRESH_TTL", "24h")
	t.Setenv("AUTHCORE_AUTH_HASH_COST", "12")
	t.Setenv("AUTHCORE_AUTH_REUSE_DETECTION", "true")

	cfg, err := LoadConfigFromEnv("AUTHCORE_AUTH_")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccessTTL != 5*time.Minute || cfg.RefreshTTL != 24*time.Hour || cfg.HashCost != 12 || !cfg.ReuseDetection {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"negative access ttl":         {"AUTHCORE_AUTH_ACCESS_TTL": "-5m"},
		"refresh shorter than access": {"AUTHCORE_AUTH_ACCESS_TTL": "2h", "AUTHCORE_AUTH_REFRESH_TTL": "1h"},
		"bad duration":                {"AUTHCORE_AUTH_REFRESH_TTL": "soon"},
		"cost out of range":           {"AUTHCORE_AUTH_HASH_COST": "99"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := LoadConfigFromEnv("AUTHCORE_AUTH_")
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
