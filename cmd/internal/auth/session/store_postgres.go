package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authcore/cmd/identity"
	"authcore/cmd/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over the refresh_sessions table.
// The pool is owned by the caller.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a Postgres-backed session store in schema
// (default "authcore").
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "authcore"
	}
	if !storage.PGIdentIsValid(schema) {
		return nil, fmt.Errorf("session: invalid schema identifier")
	}
	return &PostgresStore{pool: pool, table: storage.PGIdent(schema, "refresh_sessions")}, nil
}

const pgSessionColumns = `id, user_id, token_hash, jti, created_at, expires_at, revoked, revoked_at, revocation_reason`

func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (string, error) {
	id, err := identity.NewULID(in.CreatedAt)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (
			id, user_id, token_hash, jti, created_at, expires_at, revoked
		) VALUES ($1, $2, $3, $4, $5, $6, false)
	`, id, in.UserID, in.TokenHash, in.JTI, in.CreatedAt, in.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", identity.ConflictError{Op: "session.Create", Field: "token_hash"}
		}
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) FindActiveByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgSessionColumns+`
		FROM `+s.table+`
		WHERE token_hash = $1 AND revoked = false
	`, tokenHash)
	return scanPGSession(row)
}

func (s *PostgresStore) FindByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgSessionColumns+`
		FROM `+s.table+`
		WHERE token_hash = $1
	`, tokenHash)
	return scanPGSession(row)
}

// Revoke is the rotation claim: one conditional UPDATE, won by whichever
// caller changes the row.
func (s *PostgresStore) Revoke(ctx context.Context, sessionID string, now time.Time, reason Reason) (bool, error) {
	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		SET revoked = true, revoked_at = $2, revocation_reason = $3
		WHERE id = $1 AND revoked = false
	`, sessionID, now, string(reason))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PostgresStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason Reason) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE `+s.table+`
		SET revoked = true, revoked_at = $2, revocation_reason = $3
		WHERE user_id = $1 AND revoked = false
		RETURNING `+pgSessionColumns+`
	`, userID, now, string(reason))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanPGSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func scanPGSession(row pgx.Row) (Session, error) {
	var (
		out    Session
		reason *string
	)
	err := row.Scan(
		&out.ID,
		&out.UserID,
		&out.TokenHash,
		&out.JTI,
		&out.CreatedAt,
		&out.ExpiresAt,
		&out.Revoked,
		&out.RevokedAt,
		&reason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if reason != nil {
		out.RevocationReason = Reason(*reason)
	}
	return out, nil
}

var _ Store = (*PostgresStore)(nil)
