package token

import "errors"

// Public, stable errors for callers.
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrHMACKeyMissing  = errors.New("token HMAC key missing")
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")
	ErrConfig          = errors.New("invalid token config")
	ErrInvalidClaims   = errors.New("invalid token claims")
)
