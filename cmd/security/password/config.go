package password

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Algorithm names the hash used for new passwords.
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32 `env:"MEMORY_KIB" validate:"gte=8192,lte=1048576"`
	Iterations  uint32 `env:"ITERATIONS" validate:"gte=1,lte=20"`
	Parallelism uint8  `env:"PARALLELISM" validate:"gte=1,lte=64"`
	SaltLength  uint32 `env:"SALT_LEN" validate:"gte=8,lte=64"`
	KeyLength   uint32 `env:"KEY_LEN" validate:"gte=16,lte=64"`
}

// Policy bounds accepted passwords. Only length is enforced.
type Policy struct {
	MinLength int `env:"MIN_LEN" validate:"gte=1,lte=1024"`
	MaxLength int `env:"MAX_LEN" validate:"gte=1,lte=4096,gtefield=MinLength"`
}

// Config is the single configuration surface for this package.
type Config struct {
	Algorithm  Algorithm      `env:"PASSWORD_ALGORITHM" validate:"oneof=argon2id bcrypt"`
	Params     Argon2idParams `envPrefix:"ARGON2_"`
	BcryptCost int            `env:"BCRYPT_COST" validate:"gte=4,lte=31"`
	Policy     Policy         `envPrefix:"PASSWORD_"`
}

// DefaultConfig returns argon2id with interactive-login costs and a six
// character minimum.
func DefaultConfig() Config {
	// Clamp parallelism to [1..4] to keep resource usage predictable in containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Algorithm: AlgorithmArgon2id,
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		BcryptCost: 10,
		Policy: Policy{
			MinLength: 6,
			MaxLength: 128,
		},
	}
}

// WithCost returns a copy whose work factor is cost: argon2id iterations or
// bcrypt cost, depending on Algorithm. A non-positive cost leaves c unchanged.
func (c Config) WithCost(cost int) Config {
	if cost <= 0 {
		return c
	}
	switch c.Algorithm {
	case AlgorithmBcrypt:
		c.BcryptCost = cost
	default:
		c.Params.Iterations = uint32(cost) // #nosec G115 -- cost > 0 checked above; Validate bounds it.
	}
	return c
}

// Check validates the configuration values.
func (c Config) Check() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("password config: %w", err)
	}
	return nil
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface (prefix applied to each):
// - PASSWORD_ALGORITHM (argon2id|bcrypt)
// - PASSWORD_MIN_LEN, PASSWORD_MAX_LEN
// - ARGON2_MEMORY_KIB, ARGON2_ITERATIONS, ARGON2_PARALLELISM, ARGON2_SALT_LEN, ARGON2_KEY_LEN
// - BCRYPT_COST
func FromEnv(prefix string) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("password config: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
