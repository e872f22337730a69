// Package token signs, verifies and hashes bearer tokens.
//
// Access and refresh tokens share one claim shape (subject, username, jti,
// typ) and are produced by a Codec: HS256 JWTs by default, or PASETO
// v4.public when an Ed25519 key is configured. Verification never touches
// storage.
//
// Refresh tokens are additionally hashed before they are persisted:
// HMAC-SHA256(token, key) when a key is configured, SHA-256(token) otherwise.
// Output is a stable 64-char hex string suitable for indexed lookup.
package token
