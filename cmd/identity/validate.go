package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	return v
}

// Registration is the identity part of a sign-up request.
type Registration struct {
	Username    string `validate:"required,min=3,max=20,username"`
	DisplayName string `validate:"omitempty,min=2,max=50"`
	Email       string `validate:"required,email,max=254"`
}

// Normalize trims every field and lower-cases the email. Username case is
// kept so that the charset rule sees what the caller sent.
func (r Registration) Normalize() Registration {
	return Registration{
		Username:    strings.TrimSpace(r.Username),
		DisplayName: strings.TrimSpace(r.DisplayName),
		Email:       NormalizeEmail(r.Email),
	}
}

// ValidateRegistration checks r after normalization. Failures are OpError
// values of kind ErrInvalidInput naming the first offending field.
func ValidateRegistration(r Registration) error {
	const op = "identity.ValidateRegistration"

	err := validate.Struct(r.Normalize())
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return invalid(op, describe(verrs[0]))
	}
	return invalid(op, err.Error())
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	if field == "displayname" {
		field = "display_name"
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "username":
		return field + " may only contain lowercase letters, digits, '_' and '-'"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
