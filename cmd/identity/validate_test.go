package identity

import (
	"strings"
	"testing"
)

func TestValidateRegistration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      Registration
		wantErr string
	}{
		{name: "ok", in: Registration{Username: "alice_01", DisplayName: "Alice", Email: "alice@example.com"}},
		{name: "ok no display name", in: Registration{Username: "bob", Email: "bob@example.com"}},
		{name: "surrounding space and email case", in: Registration{Username: "  carol-x ", Email: "Carol@Example.com"}},
		{name: "username uppercase", in: Registration{Username: "Alice", Email: "alice@example.com"}, wantErr: "username may only contain"},
		{name: "username mixed case", in: Registration{Username: "  Carol-X ", Email: "carol@example.com"}, wantErr: "username may only contain"},
		{name: "username too short", in: Registration{Username: "ab", Email: "a@example.com"}, wantErr: "username must be at least 3"},
		{name: "username too long", in: Registration{Username: strings.Repeat("a", 21), Email: "a@example.com"}, wantErr: "username must be at most 20"},
		{name: "username charset", in: Registration{Username: "al ice", Email: "a@example.com"}, wantErr: "username may only contain"},
		{name: "username missing", in: Registration{Email: "a@example.com"}, wantErr: "username is required"},
		{name: "display name too short", in: Registration{Username: "dave", DisplayName: "D", Email: "d@example.com"}, wantErr: "display_name must be at least 2"},
		{name: "display name too long", in: Registration{Username: "dave", DisplayName: strings.Repeat("d", 51), Email: "d@example.com"}, wantErr: "display_name must be at most 50"},
		{name: "bad email", in: Registration{Username: "erin", Email: "not-an-email"}, wantErr: "email must be a valid email address"},
		{name: "email missing", in: Registration{Username: "erin"}, wantErr: "email is required"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateRegistration(tt.in)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected ok, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !IsInvalidInput(err) {
				t.Fatalf("expected ErrInvalidInput kind, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := NormalizeEmail("  MiXeD@Example.COM "); got != "mixed@example.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
	if got := NormalizeUsername(" Bob "); got != "bob" {
		t.Fatalf("NormalizeUsername = %q", got)
	}
}

func TestErrors_Kinds(t *testing.T) {
	t.Parallel()

	if !IsConflict(ConflictError{Op: "x", Field: "email"}) {
		t.Fatalf("ConflictError must be a conflict")
	}
	if !IsNotFound(NotFoundError{Op: "x", Resource: "user"}) {
		t.Fatalf("NotFoundError must be not found")
	}
	err := OpError{Op: "identity.Op", Kind: ErrInvalidInput, Msg: "bad"}
	if err.Error() != "identity.Op: invalid_input: bad" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
