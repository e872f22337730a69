package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"authcore/cmd/internal/storage"
)

// SQLiteStore implements identity persistence over an embedded SQLite file.
// The *sql.DB is owned by the caller and must already carry the schema.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil sqlite db")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, emailNorm, err := prepareCreate(op, in)
	if err != nil {
		return User{}, err
	}

	userID, err := NewULID(in.Now)
	if err != nil {
		return User{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, email, email_norm, avatar_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID,
		in.Username,
		nullString(in.DisplayName),
		in.Email,
		emailNorm,
		nullString(in.AvatarURL),
		toMillis(in.Now),
	)
	if err != nil {
		if storage.SQLiteIsUniqueViolation(err) {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		return User{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_credentials (user_id, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		userID, in.PasswordHash, toMillis(in.Now), toMillis(in.Now),
	)
	if err != nil {
		return User{}, err
	}

	if err := tx.Commit(); err != nil {
		return User{}, err
	}

	return User{
		ID:          userID,
		Username:    in.Username,
		DisplayName: in.DisplayName,
		Email:       in.Email,
		AvatarURL:   in.AvatarURL,
		CreatedAt:   fromMillis(toMillis(in.Now)),
	}, nil
}

func (s *SQLiteStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	row := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.display_name, u.email, u.avatar_url, u.created_at, c.password_hash
		   FROM users u
		   JOIN user_credentials c ON c.user_id = u.id
		  WHERE u.email_norm = ?`,
		NormalizeEmail(email),
	)

	var out UserAuth
	u, err := scanSQLiteUser(row, &out.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, err
	}
	out.User = u
	return out, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, email, avatar_url, created_at
		   FROM users
		  WHERE id = ?`,
		strings.TrimSpace(id),
	)
	u, err := scanSQLiteUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return u, nil
}

func scanSQLiteUser(row *sql.Row, extra ...any) (User, error) {
	var (
		u           User
		displayName sql.NullString
		avatarURL   sql.NullString
		createdAt   int64
	)
	dest := append([]any{&u.ID, &u.Username, &displayName, &u.Email, &avatarURL, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return User{}, err
	}
	if displayName.Valid {
		u.DisplayName = &displayName.String
	}
	if avatarURL.Valid {
		u.AvatarURL = &avatarURL.String
	}
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

var _ Store = (*SQLiteStore)(nil)
