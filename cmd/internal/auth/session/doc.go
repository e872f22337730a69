// Package session is the credential and session lifecycle manager.
//
// Manager registers users, logs them in, rotates refresh tokens and revokes
// sessions. It is the only component with business rules: identity.Store and
// the session Store are plain persistence, token.Codec is pure cryptography.
//
// Refresh tokens are single use. Every rotation claims the presented session
// with one conditional update ("revoke where not yet revoked"), so when two
// callers race on the same token exactly one of them receives a new pair.
//
// Access tokens are stateless and stay valid until their embedded expiry. A
// logout only stops further refreshes, unless a Denylist is configured.
package session
