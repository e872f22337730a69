package session

import (
	"context"
	"time"
)

// Reason records why a session was revoked.
type Reason string

const (
	ReasonRotated       Reason = "rotated"
	ReasonExpired       Reason = "expired"
	ReasonLogout        Reason = "logout"
	ReasonReuseDetected Reason = "reuse_detected"
)

// Session is one issued refresh token. The token itself is never stored,
// only its hash.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	// JTI is shared by the access and refresh token of the pair.
	JTI string

	CreatedAt time.Time
	ExpiresAt time.Time

	// Revoked only ever moves from false to true.
	Revoked          bool
	RevokedAt        *time.Time
	RevocationReason Reason
}

// CreateInput describes a new session row.
type CreateInput struct {
	UserID    string
	TokenHash string
	JTI       string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store persists refresh sessions.
//
// Every mutation is a single atomic statement: Revoke must report true to
// exactly one caller when several race on the same row.
type Store interface {
	// Create inserts a row and returns its ULID.
	Create(ctx context.Context, in CreateInput) (string, error)

	// FindActiveByTokenHash returns the non-revoked row for hash, or
	// ErrSessionNotFound. Expiry is the caller's concern.
	FindActiveByTokenHash(ctx context.Context, tokenHash string) (Session, error)

	// FindByTokenHash returns the row for hash whatever its state.
	FindByTokenHash(ctx context.Context, tokenHash string) (Session, error)

	// Revoke flips revoked from false to true and reports whether this call
	// did it. Revoking an already-revoked row is a no-op returning false.
	Revoke(ctx context.Context, sessionID string, now time.Time, reason Reason) (bool, error)

	// RevokeAllForUser revokes every active row of userID in one statement
	// and returns the rows it changed.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason Reason) ([]Session, error)

	// PurgeExpired deletes rows whose expiry is before cutoff.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
