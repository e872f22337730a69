package app

import (
	"errors"
	"strings"

	"authcore/cmd/security/token"
)

const minSecretBytes = 32

// ValidateSecurityConfig refuses configurations that would sign or store
// tokens with weak key material.
func ValidateSecurityConfig(cfg Config) error {
	switch cfg.Token.Algorithm {
	case token.AlgorithmHS256, "":
		if len(strings.TrimSpace(cfg.Token.JWTSecret)) < minSecretBytes {
			return errors.New("security policy: AUTHCORE_JWT_SECRET must be at least 32 bytes")
		}
	case token.AlgorithmPasetoV4:
		if strings.TrimSpace(cfg.Token.PasetoV4SecretKeyHex) == "" {
			return errors.New("security policy: AUTHCORE_PASETO_V4_SECRET_KEY_HEX is required for paseto-v4")
		}
	}

	key := strings.TrimSpace(cfg.TokenHMACKey)
	if key == "" && !cfg.RequireTokenHMAC {
		return nil
	}

	if _, err := token.CheckHMACKey(key, minSecretBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: AUTHCORE_REQUIRE_TOKEN_HMAC=true but AUTHCORE_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: AUTHCORE_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}
	return nil
}

// refreshHashKey returns the configured HMAC key or nil for plain SHA-256.
func refreshHashKey(cfg Config) []byte {
	key := strings.TrimSpace(cfg.TokenHMACKey)
	if key == "" {
		return nil
	}
	return []byte(key)
}
