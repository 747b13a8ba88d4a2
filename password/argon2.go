package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash is returned for argon2id strings that cannot be parsed or
// whose parameters fall below the accepted floor.
var ErrMalformedHash = errors.New("malformed argon2id hash")

const argon2Prefix = "$argon2id$"

// Floors applied both to configuration and to stored hashes.
const (
	minArgon2MemoryKB = 8 * 1024
	minArgon2Bytes    = 16
)

// Argon2Config holds the argon2id cost parameters.
type Argon2Config struct {
	Memory      uint32 `mapstructure:"memory_kb"`
	Time        uint32 `mapstructure:"time"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// DefaultArgon2Config returns interactive-login parameters (64 MiB, t=3, p=2).
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (c Argon2Config) validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Memory >= minArgon2MemoryKB, "memory must be >= 8192 KB"},
		{c.Time >= 1, "time must be >= 1"},
		{c.Parallelism >= 1, "parallelism must be >= 1"},
		{c.SaltLength >= minArgon2Bytes, "salt length must be >= 16"},
		{c.KeyLength >= minArgon2Bytes, "key length must be >= 16"},
	}
	for _, c := range checks {
		if !c.ok {
			return errors.New("argon2: " + c.msg)
		}
	}
	return nil
}

// argon2Hash is the decoded form of
// $argon2id$v=19$m=<kb>,t=<time>,p=<threads>$<salt>$<key>.
type argon2Hash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (h argon2Hash) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", h.memory, h.time, h.threads)
}

func (h argon2Hash) String() string {
	return fmt.Sprintf("%sv=%d$%s$%s$%s", argon2Prefix, argon2.Version, h.params(),
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key))
}

func parseArgon2Hash(encoded string) (argon2Hash, error) {
	var h argon2Hash
	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return h, fmt.Errorf("%w: not argon2id", ErrMalformedHash)
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return h, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedHash, len(fields))
	}
	if fields[0] != fmt.Sprintf("v=%d", argon2.Version) {
		return h, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[0])
	}

	// Re-rendering the parsed values must give back the input, which rules
	// out unknown keys, reordering and trailing junk.
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil || h.params() != fields[1] {
		return h, fmt.Errorf("%w: bad parameters %q", ErrMalformedHash, fields[1])
	}
	if h.memory < minArgon2MemoryKB || h.time < 1 || h.threads < 1 {
		return h, fmt.Errorf("%w: parameters below minimum", ErrMalformedHash)
	}

	var err error
	if h.salt, err = decodeB64(fields[2]); err != nil || len(h.salt) < minArgon2Bytes {
		return h, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if h.key, err = decodeB64(fields[3]); err != nil || len(h.key) < minArgon2Bytes {
		return h, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return h, nil
}

// decodeB64 accepts standard base64 with or without padding.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Argon2 hashes passwords with argon2id into PHC strings.
type Argon2 struct {
	cfg Argon2Config
}

// NewArgon2 validates cfg and returns a ready scheme.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash returns a fresh PHC string with a random salt.
func (a *Argon2) Hash(password string) (string, error) {
	h := argon2Hash{
		memory:  a.cfg.Memory,
		time:    a.cfg.Time,
		threads: a.cfg.Parallelism,
		salt:    make([]byte, a.cfg.SaltLength),
	}
	if _, err := rand.Read(h.salt); err != nil {
		return "", fmt.Errorf("argon2: read salt: %w", err)
	}
	h.key = argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, a.cfg.KeyLength)
	return h.String(), nil
}

// Verify recomputes the key with the parameters stored in encodedHash and
// compares in constant time.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	h, err := parseArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(key, h.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters or a different key length than the configured ones.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := parseArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := h.memory < a.cfg.Memory || h.time < a.cfg.Time || h.threads < a.cfg.Parallelism
	return weaker || uint32(len(h.key)) != a.cfg.KeyLength, nil
}

func isArgon2Hash(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, argon2Prefix)
}
