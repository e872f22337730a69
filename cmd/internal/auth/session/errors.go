package session

import (
	"errors"
	"fmt"

	"authcore/cmd/identity"
)

// Error kinds surfaced by Manager operations. Match them with errors.Is.
var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid_input")
	ErrStorage      = errors.New("storage_error")
	ErrInternal     = errors.New("internal_error")

	// ErrNotFound is shared with identity so a user that vanished between
	// steps matches both packages' kind.
	ErrNotFound = identity.ErrNotFound
)

var (
	// ErrSessionNotFound is returned by stores when no row matches.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// Error is returned by every Manager operation. Msg is safe to show to
// clients; Err holds the underlying cause and is for logs only.
type Error struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message returns the client-safe message of err, or a generic one.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Msg != "" {
		return se.Msg
	}
	return "internal error"
}

// KindOf returns the kind carried by err, or ErrInternal.
func KindOf(err error) error {
	var se *Error
	if errors.As(err, &se) && se.Kind != nil {
		return se.Kind
	}
	return ErrInternal
}

const (
	msgInvalidCredentials = "invalid email or password"
	msgInvalidRefresh     = "invalid or expired refresh token"
	msgEmailTaken         = "email already registered"
	msgStorage            = "storage unavailable"
	msgInternal           = "internal error"
)

func unauthorized(op, msg string, cause error) error {
	return &Error{Op: op, Kind: ErrUnauthorized, Msg: msg, Err: cause}
}

func storageErr(op string, cause error) error {
	return &Error{Op: op, Kind: ErrStorage, Msg: msgStorage, Err: cause}
}

func internalErr(op string, cause error) error {
	return &Error{Op: op, Kind: ErrInternal, Msg: msgInternal, Err: cause}
}

func invalidInput(op, msg string, cause error) error {
	return &Error{Op: op, Kind: ErrInvalidInput, Msg: msg, Err: cause}
}
