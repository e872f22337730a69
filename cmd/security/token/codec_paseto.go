package token

import (
	"fmt"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// PasetoCodec signs PASETO v4.public tokens with an Ed25519 keypair.
// Holders of PublicKeyHex can verify without the secret.
type PasetoCodec struct {
	issuer    string
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoCodec builds a v4.public codec from a hex-encoded secret key.
func NewPasetoCodec(secretKeyHex, issuer string, clockSkew time.Duration) (*PasetoCodec, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(secretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: paseto secret key: %v", ErrConfig, err)
	}
	return &PasetoCodec{
		issuer:    issuer,
		clockSkew: clockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

// PublicKeyHex exports the verification key for downstream services.
func (c *PasetoCodec) PublicKeyHex() string {
	return c.public.ExportHex()
}

func (c *PasetoCodec) Sign(cl Claims, ttl time.Duration) (string, error) {
	if err := checkSignable(cl, ttl); err != nil {
		return "", err
	}
	iat := issuedAt(cl)

	tok := paseto.NewToken()
	tok.SetIssuer(c.issuer)
	tok.SetSubject(cl.Subject)
	tok.SetJti(cl.JTI)
	tok.SetIssuedAt(iat)
	tok.SetNotBefore(iat)
	tok.SetExpiration(iat.Add(ttl))
	if err := tok.Set("username", cl.Username); err != nil {
		return "", fmt.Errorf("paseto claim: %w", err)
	}
	if err := tok.Set("typ", string(cl.Kind)); err != nil {
		return "", fmt.Errorf("paseto claim: %w", err)
	}

	return tok.V4Sign(c.secret, nil), nil
}

func (c *PasetoCodec) Verify(token string, now time.Time) (Claims, error) {
	validNow := now.Add(c.clockSkew)

	// Fresh parser per call; expiry is checked against validNow, not the wall clock.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(c.issuer))
	p.AddRule(paseto.ValidAt(validNow))

	parsed, err := p.ParseV4Public(c.public, token, nil)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, ErrInvalidToken
	}
	jti, err := parsed.GetJti()
	if err != nil || jti == "" {
		return Claims{}, ErrInvalidToken
	}
	exp, err := parsed.GetExpiration()
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	iss, _ := parsed.GetIssuer()
	iat, _ := parsed.GetIssuedAt()
	username, _ := parsed.GetString("username")
	kind, _ := parsed.GetString("typ")

	return Claims{
		Subject:   sub,
		Username:  username,
		JTI:       jti,
		Kind:      Kind(kind),
		Issuer:    iss,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}
