package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"authcore/cmd/identity"
	"authcore/cmd/internal/storage"
)

// SQLiteStore implements Store over the refresh_sessions table of an
// embedded SQLite database. The handle is owned by the caller.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db, which must already carry the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("session: nil sqlite db")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteSessionColumns = `id, user_id, token_hash, jti, created_at, expires_at, revoked, revoked_at, revocation_reason`

func (s *SQLiteStore) Create(ctx context.Context, in CreateInput) (string, error) {
	id, err := identity.NewULID(in.CreatedAt)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, jti, created_at, expires_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, id, in.UserID, in.TokenHash, in.JTI, toMillis(in.CreatedAt), toMillis(in.ExpiresAt))
	if err != nil {
		if storage.SQLiteIsUniqueViolation(err) {
			return "", identity.ConflictError{Op: "session.Create", Field: "token_hash"}
		}
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) FindActiveByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM refresh_sessions WHERE token_hash = ? AND revoked = 0`,
		tokenHash,
	)
	return scanSQLiteSession(row)
}

func (s *SQLiteStore) FindByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM refresh_sessions WHERE token_hash = ?`,
		tokenHash,
	)
	return scanSQLiteSession(row)
}

func (s *SQLiteStore) Revoke(ctx context.Context, sessionID string, now time.Time, reason Reason) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE refresh_sessions
		SET revoked = 1, revoked_at = ?, revocation_reason = ?
		WHERE id = ? AND revoked = 0
	`, toMillis(now), string(reason), sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason Reason) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE refresh_sessions
		SET revoked = 1, revoked_at = ?, revocation_reason = ?
		WHERE user_id = ? AND revoked = 0
		RETURNING `+sqliteSessionColumns,
		toMillis(now), string(reason), userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
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

func (s *SQLiteStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE expires_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (Session, error) {
	var (
		out       Session
		createdAt int64
		expiresAt int64
		revoked   int64
		revokedAt sql.NullInt64
		reason    sql.NullString
	)
	err := row.Scan(&out.ID, &out.UserID, &out.TokenHash, &out.JTI, &createdAt, &expiresAt, &revoked, &revokedAt, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}

	out.CreatedAt = fromMillis(createdAt)
	out.ExpiresAt = fromMillis(expiresAt)
	out.Revoked = revoked != 0
	if revokedAt.Valid {
		t := fromMillis(revokedAt.Int64)
		out.RevokedAt = &t
	}
	if reason.Valid {
		out.RevocationReason = Reason(reason.String)
	}
	return out, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

var _ Store = (*SQLiteStore)(nil)
