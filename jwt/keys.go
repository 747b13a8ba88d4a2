package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidKey is returned by NewCodec for unusable key material.
var ErrInvalidKey = errors.New("invalid signing key")

const minHMACKeyBytes = 32

// keyring holds key material decoded once at construction.
type keyring struct {
	method jwt.SigningMethod
	kid    string
	// sign is nil for verify-only codecs.
	sign interface{}
	// byKid, when non-empty, is authoritative and every token must carry a
	// known kid. Otherwise fallback verifies everything.
	byKid    map[string]interface{}
	fallback interface{}
}

func newKeyring(cfg Config) (*keyring, error) {
	k := &keyring{kid: strings.TrimSpace(cfg.KeyID), byKid: make(map[string]interface{}, len(cfg.VerifyKeys))}

	var decodeVerify func([]byte) (interface{}, error)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACKeyBytes {
			return nil, fmt.Errorf("%w: hs256 needs a secret of at least %d bytes", ErrInvalidKey, minHMACKeyBytes)
		}
		secret := append([]byte(nil), cfg.PrivateKey...)
		k.method, k.sign, k.fallback = jwt.SigningMethodHS256, secret, secret
		decodeVerify = func(b []byte) (interface{}, error) {
			if len(b) == 0 {
				return nil, errors.New("empty secret")
			}
			return append([]byte(nil), b...), nil
		}

	case MethodEd25519:
		k.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := decodeEdPrivate(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			k.sign = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := decodeEdPublic(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			k.fallback = pub
		} else if priv, ok := k.sign.(ed25519.PrivateKey); ok {
			k.fallback = priv.Public()
		}
		if k.fallback == nil && len(cfg.VerifyKeys) == 0 {
			return nil, fmt.Errorf("%w: ed25519 needs a public key or verify keys", ErrInvalidKey)
		}
		decodeVerify = func(b []byte) (interface{}, error) { return decodeEdPublic(b) }

	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrInvalidKey, cfg.SigningMethod)
	}

	for kid, raw := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("%w: verify key with empty kid", ErrInvalidKey)
		}
		key, err := decodeVerify(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: kid %q: %v", ErrInvalidKey, kid, err)
		}
		k.byKid[kid] = key
	}
	if k.kid != "" && len(k.byKid) > 0 {
		if _, ok := k.byKid[k.kid]; !ok {
			return nil, fmt.Errorf("%w: key id %q has no verify key", ErrInvalidKey, k.kid)
		}
	}
	return k, nil
}

// verifyKey is the jwt.Keyfunc for tokens signed by this ring.
func (k *keyring) verifyKey(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != k.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm %s", t.Method.Alg())
	}
	kid, _ := t.Header["kid"].(string)

	if len(k.byKid) > 0 {
		key, ok := k.byKid[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return key, nil
	}
	if k.kid != "" && kid != k.kid {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return k.fallback, nil
}

// decodeEdPrivate accepts a raw 64-byte key or a PKCS#8 PEM block.
func decodeEdPrivate(b []byte) (ed25519.PrivateKey, error) {
	if len(b) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(b), nil
	}
	key, err := jwt.ParseEdPrivateKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519 private key: %v", ErrInvalidKey, err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: ed25519 private key has type %T", ErrInvalidKey, key)
	}
	return priv, nil
}

// decodeEdPublic accepts a raw 32-byte key or a PKIX PEM block.
func decodeEdPublic(b []byte) (ed25519.PublicKey, error) {
	if len(b) == ed25519.PublicKeySize {
		return ed25519.PublicKey(b), nil
	}
	key, err := jwt.ParseEdPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519 public key: %v", ErrInvalidKey, err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: ed25519 public key has type %T", ErrInvalidKey, key)
	}
	return pub, nil
}
