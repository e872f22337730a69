package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"authcore/cmd/identity"
)

// MemoryStore keeps sessions in process memory. A single mutex makes every
// method atomic.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Session
	byHash map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Session),
		byHash: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := identity.NewULID(in.CreatedAt)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byHash[in.TokenHash]; dup {
		return "", identity.ConflictError{Op: "session.Create", Field: "token_hash"}
	}
	s.byID[id] = &Session{
		ID:        id,
		UserID:    in.UserID,
		TokenHash: in.TokenHash,
		JTI:       in.JTI,
		CreatedAt: in.CreatedAt,
		ExpiresAt: in.ExpiresAt,
	}
	s.byHash[in.TokenHash] = id
	return id, nil
}

func (s *MemoryStore) FindActiveByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row, err := s.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if row.Revoked {
		return Session{}, ErrSessionNotFound
	}
	return row, nil
}

func (s *MemoryStore) FindByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[tokenHash]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *s.byID[id], nil
}

func (s *MemoryStore) Revoke(ctx context.Context, sessionID string, now time.Time, reason Reason) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[sessionID]
	if !ok || row.Revoked {
		return false, nil
	}
	revoke(row, now, reason)
	return true, nil
}

func (s *MemoryStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason Reason) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Session
	for _, row := range s.byID {
		if row.UserID != userID || row.Revoked {
			continue
		}
		revoke(row, now, reason)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, row := range s.byID {
		if row.ExpiresAt.Before(cutoff) {
			delete(s.byHash, row.TokenHash)
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func revoke(row *Session, now time.Time, reason Reason) {
	at := now
	row.Revoked = true
	row.RevokedAt = &at
	row.RevocationReason = reason
}

var _ Store = (*MemoryStore)(nil)
