package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwtClaims struct {
	Username string `json:"username"`
	Kind     Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// JWTCodec signs HS256 JSON Web Tokens with a shared secret.
type JWTCodec struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
}

// NewJWTCodec returns an HS256 codec. The secret must be at least
// MinHMACKeyBytes long.
func NewJWTCodec(secret []byte, issuer string, clockSkew time.Duration) (*JWTCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: jwt secret missing", ErrConfig)
	}
	if len(secret) < MinHMACKeyBytes {
		return nil, fmt.Errorf("%w: jwt secret shorter than %d bytes", ErrConfig, MinHMACKeyBytes)
	}
	return &JWTCodec{secret: secret, issuer: issuer, clockSkew: clockSkew}, nil
}

func (c *JWTCodec) Sign(cl Claims, ttl time.Duration) (string, error) {
	if err := checkSignable(cl, ttl); err != nil {
		return "", err
	}
	iat := issuedAt(cl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Username: cl.Username,
		Kind:     cl.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   cl.Subject,
			ID:        cl.JTI,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
		},
	})
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func (c *JWTCodec) Verify(token string, now time.Time) (Claims, error) {
	validNow := now.Add(c.clockSkew)

	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return validNow }),
	)

	var jc jwtClaims
	if _, err := p.ParseWithClaims(token, &jc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if jc.Subject == "" || jc.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Subject:  jc.Subject,
		Username: jc.Username,
		JTI:      jc.ID,
		Kind:     jc.Kind,
		Issuer:   jc.Issuer,
	}
	if jc.IssuedAt != nil {
		out.IssuedAt = jc.IssuedAt.Time
	}
	if jc.ExpiresAt != nil {
		out.ExpiresAt = jc.ExpiresAt.Time
	}
	return out, nil
}
