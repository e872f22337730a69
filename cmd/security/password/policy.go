package password

import "unicode/utf8"

// Validate checks password policy. It does not mutate input.
func (c Config) Validate(password string) error {
	// Count characters (runes), not bytes.
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	// bcrypt ignores everything past its byte limit.
	if c.Algorithm == AlgorithmBcrypt && len(password) > bcryptMaxBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// MaxLength reports the longest password Validate accepts, in characters.
// Under bcrypt this is further capped by the algorithm's byte limit.
func (c Config) MaxLength() int {
	if c.Algorithm == AlgorithmBcrypt && c.Policy.MaxLength > bcryptMaxBytes {
		return bcryptMaxBytes
	}
	return c.Policy.MaxLength
}
