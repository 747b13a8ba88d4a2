package password

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func padded(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func newTestHasher(t *testing.T, alg Algorithm) *Hasher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Algorithm = alg
	cfg.BcryptCost = 4
	cfg.Argon2 = fastArgon2Config()
	h, err := NewHasher(cfg)
	require.NoError(t, err)
	return h
}

func TestHasherHashesWithPrimaryScheme(t *testing.T) {
	bh := newTestHasher(t, AlgorithmBcrypt)
	hash, err := bh.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$04$"), hash)

	ah := newTestHasher(t, AlgorithmArgon2id)
	hash, err = ah.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"), hash)
}

func TestHasherVerifiesEitherScheme(t *testing.T) {
	bh := newTestHasher(t, AlgorithmBcrypt)
	ah := newTestHasher(t, AlgorithmArgon2id)

	bcryptHash, err := bh.Hash("password-one")
	require.NoError(t, err)
	argonHash, err := ah.Hash("password-two")
	require.NoError(t, err)

	for _, h := range []*Hasher{bh, ah} {
		ok, err := h.Verify("password-one", bcryptHash)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.Verify("password-two", argonHash)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.Verify("wrong", bcryptHash)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestHasherLengthPolicy(t *testing.T) {
	h := newTestHasher(t, AlgorithmArgon2id)

	_, err := h.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
	_, err = h.Hash(strings.Repeat("a", DefaultMaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	_, err = h.Hash(strings.Repeat("a", DefaultMaxPasswordBytes))
	assert.NoError(t, err)

	_, err = h.Verify(strings.Repeat("a", DefaultMaxPasswordBytes+1), "$2a$04$whatever")
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestBcryptRejectsOverlongInput(t *testing.T) {
	h := newTestHasher(t, AlgorithmBcrypt)
	_, err := h.Hash(strings.Repeat("x", BcryptMaxPasswordBytes+1))
	assert.True(t, errors.Is(err, ErrPasswordTooLong))
}

func TestHasherUnknownScheme(t *testing.T) {
	h := newTestHasher(t, AlgorithmBcrypt)
	_, err := h.Verify("password", "plaintext-password")
	assert.ErrorIs(t, err, ErrUnknownScheme)
	assert.True(t, h.NeedsRehash("plaintext-password"))
}

func TestHasherNeedsRehash(t *testing.T) {
	bh := newTestHasher(t, AlgorithmBcrypt)
	ah := newTestHasher(t, AlgorithmArgon2id)

	bcryptHash, err := bh.Hash("password-one")
	require.NoError(t, err)

	assert.False(t, bh.NeedsRehash(bcryptHash))
	assert.True(t, ah.NeedsRehash(bcryptHash), "scheme switch requires rehash")

	cfg := DefaultConfig()
	cfg.BcryptCost = 5
	stronger, err := NewHasher(cfg)
	require.NoError(t, err)
	assert.True(t, stronger.NeedsRehash(bcryptHash))
}

func TestNewHasherRejectsBadConfig(t *testing.T) {
	_, err := NewHasher(Config{Algorithm: "md5"})
	assert.Error(t, err)
	_, err = NewHasher(Config{BcryptCost: 99})
	assert.Error(t, err)
	_, err = NewHasher(Config{MinPasswordBytes: 20, MaxPasswordBytes: 10})
	assert.Error(t, err)
}
