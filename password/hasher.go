package password

import (
	"errors"
	"fmt"
)

// Algorithm selects the scheme used for new hashes.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

const (
	// DefaultMinPasswordBytes is the shortest password Hash accepts.
	DefaultMinPasswordBytes = 8
	// DefaultMaxPasswordBytes caps input to both Hash and Verify.
	DefaultMaxPasswordBytes = 1024
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	// ErrUnknownScheme is returned by Verify for hashes that are neither bcrypt nor argon2id.
	ErrUnknownScheme = errors.New("unrecognised password hash format")
)

// Scheme is one hashing algorithm.
type Scheme interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Config selects the scheme for new hashes and its parameters.
type Config struct {
	Algorithm        Algorithm    `mapstructure:"algorithm"`
	BcryptCost       int          `mapstructure:"bcrypt_cost"`
	Argon2           Argon2Config `mapstructure:"argon2"`
	MinPasswordBytes int          `mapstructure:"min_password_bytes"`
	MaxPasswordBytes int          `mapstructure:"max_password_bytes"`
}

// DefaultConfig hashes new passwords with bcrypt at the library default cost.
func DefaultConfig() Config {
	return Config{
		Algorithm:        AlgorithmBcrypt,
		BcryptCost:       10,
		Argon2:           DefaultArgon2Config(),
		MinPasswordBytes: DefaultMinPasswordBytes,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

// Hasher hashes with the configured scheme and verifies against any
// supported scheme, chosen from the stored hash's prefix.
type Hasher struct {
	primary  Algorithm
	bcrypt   *Bcrypt
	argon2   *Argon2
	minBytes int
	maxBytes int
}

// NewHasher validates cfg and builds both schemes.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmBcrypt
	}
	if cfg.Algorithm != AlgorithmBcrypt && cfg.Algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
	if cfg.MinPasswordBytes <= 0 {
		cfg.MinPasswordBytes = DefaultMinPasswordBytes
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if cfg.MinPasswordBytes > cfg.MaxPasswordBytes {
		return nil, errors.New("password min bytes exceeds max bytes")
	}

	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	argonCfg := cfg.Argon2
	if argonCfg == (Argon2Config{}) {
		argonCfg = DefaultArgon2Config()
	}
	a, err := NewArgon2(argonCfg)
	if err != nil {
		return nil, err
	}

	return &Hasher{
		primary:  cfg.Algorithm,
		bcrypt:   b,
		argon2:   a,
		minBytes: cfg.MinPasswordBytes,
		maxBytes: cfg.MaxPasswordBytes,
	}, nil
}

// Algorithm returns the scheme used for new hashes.
func (h *Hasher) Algorithm() Algorithm {
	return h.primary
}

// Hash applies the length policy and hashes with the primary scheme.
// Passwords are hashed as raw bytes, without Unicode normalisation.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < h.minBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > h.maxBytes {
		return "", ErrPasswordTooLong
	}
	return h.scheme(h.primary).Hash(password)
}

// Verify reports whether password matches encodedHash. A mismatch is
// (false, nil); errors mean the input or the stored hash is unusable.
func (h *Hasher) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > h.maxBytes {
		return false, ErrPasswordTooLong
	}
	s, err := h.schemeFor(encodedHash)
	if err != nil {
		return false, err
	}
	return s.Verify(password, encodedHash)
}

// NeedsRehash reports whether encodedHash should be replaced on the next
// successful login: a different scheme than the primary, or weaker parameters.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	s, err := h.schemeFor(encodedHash)
	if err != nil {
		return true
	}
	if s != h.scheme(h.primary) {
		return true
	}
	upgrade, err := s.NeedsUpgrade(encodedHash)
	return err != nil || upgrade
}

func (h *Hasher) scheme(a Algorithm) Scheme {
	if a == AlgorithmArgon2id {
		return h.argon2
	}
	return h.bcrypt
}

func (h *Hasher) schemeFor(encodedHash string) (Scheme, error) {
	switch {
	case isBcryptHash(encodedHash):
		return h.bcrypt, nil
	case isArgon2Hash(encodedHash):
		return h.argon2, nil
	default:
		return nil, ErrUnknownScheme
	}
}
