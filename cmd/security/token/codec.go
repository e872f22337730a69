package token

import (
	"fmt"
	"strings"
	"time"
)

// Kind tells access tokens and refresh tokens apart. It travels in the typ claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the payload carried by every token this package signs.
type Claims struct {
	Subject   string
	Username  string
	JTI       string
	Kind      Kind
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies bearer tokens. Implementations are stateless and
// safe for concurrent use.
type Codec interface {
	// Sign embeds c.IssuedAt+ttl as the expiry. A zero IssuedAt means now.
	Sign(c Claims, ttl time.Duration) (string, error)
	// Verify checks signature, structure, issuer and expiry at now.
	Verify(token string, now time.Time) (Claims, error)
}

// Algorithm selects the Codec implementation.
type Algorithm string

const (
	AlgorithmHS256    Algorithm = "hs256"
	AlgorithmPasetoV4 Algorithm = "paseto-v4"
)

// Config configures NewCodec.
type Config struct {
	Algorithm Algorithm `env:"TOKEN_ALGORITHM" envDefault:"hs256" validate:"oneof=hs256 paseto-v4"`
	Issuer    string    `env:"TOKEN_ISSUER" envDefault:"authcore" validate:"required"`

	// ClockSkew shifts the verification instant forward, so tokens expire
	// slightly early rather than late.
	ClockSkew time.Duration `env:"TOKEN_CLOCK_SKEW" envDefault:"0s" validate:"gte=0"`

	// JWTSecret is the HS256 shared secret.
	JWTSecret string `env:"JWT_SECRET"`

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key for v4.public.
	PasetoV4SecretKeyHex string `env:"PASETO_V4_SECRET_KEY_HEX"`
}

// NewCodec builds the Codec selected by cfg.Algorithm.
func NewCodec(cfg Config) (Codec, error) {
	switch cfg.Algorithm {
	case AlgorithmHS256, "":
		return NewJWTCodec([]byte(strings.TrimSpace(cfg.JWTSecret)), cfg.Issuer, cfg.ClockSkew)
	case AlgorithmPasetoV4:
		return NewPasetoCodec(cfg.PasetoV4SecretKeyHex, cfg.Issuer, cfg.ClockSkew)
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrConfig, cfg.Algorithm)
	}
}

func issuedAt(c Claims) time.Time {
	if c.IssuedAt.IsZero() {
		return time.Now()
	}
	return c.IssuedAt
}

func checkSignable(c Claims, ttl time.Duration) error {
	if c.Subject == "" || c.JTI == "" {
		return fmt.Errorf("%w: subject and jti are required", ErrInvalidClaims)
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrInvalidClaims)
	}
	return nil
}
