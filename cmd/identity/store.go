package identity

import (
	"context"
	"strings"
	"time"
)

// User is the public-safe user record. It never carries the password hash.
type User struct {
	ID          string
	Username    string
	DisplayName *string
	Email       string
	AvatarURL   *string
	CreatedAt   time.Time
}

// UserAuth pairs a user with the stored password hash for credential checks.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a new user. PasswordHash must already be encoded
// by the password package; stores persist it verbatim.
type CreateUserInput struct {
	Username     string
	DisplayName  *string
	Email        string
	AvatarURL    *string
	PasswordHash string
	Now          time.Time
}

// Store is the credential persistence boundary.
type Store interface {
	// CreateUser persists a user and its password hash atomically.
	// Returns ConflictError{Field: "email"} when the normalized email exists.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// GetUserAuthByEmail looks up by normalized email. NotFoundError when absent.
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	// GetUserByID returns NotFoundError when absent.
	GetUserByID(ctx context.Context, id string) (User, error)
}

// prepareCreate validates and normalizes input shared by every backend.
func prepareCreate(op string, in CreateUserInput) (CreateUserInput, string, error) {
	in.Username = NormalizeUsername(in.Username)
	in.DisplayName = trimPtr(in.DisplayName)
	in.AvatarURL = trimPtr(in.AvatarURL)
	emailNorm := NormalizeEmail(in.Email)

	if in.Username == "" {
		return in, "", invalid(op, "username is required")
	}
	if emailNorm == "" {
		return in, "", invalid(op, "email is required")
	}
	if in.PasswordHash == "" {
		return in, "", invalid(op, "password hash is required")
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	in.Email = strings.TrimSpace(in.Email)
	return in, emailNorm, nil
}
