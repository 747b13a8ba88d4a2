package jwt

import (
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func TestVerifyIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	c, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "tokenguard",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	access, err := c.Issue("alice", []string{"USER"}, "id-1", KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := c.Verify(access); err != nil {
		t.Fatalf("expected valid token to verify: %v", err)
	}

	wrongIssuer := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		ID:        "id-2",
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	badIssuer, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongIssuer).SignedString(priv)
	if _, err := c.Verify(badIssuer); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected wrong issuer to fail with ErrInvalidClaims, got %v", err)
	}

	wrongAudience := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		ID:        "id-3",
		Issuer:    "tokenguard",
		Audience:  gjwt.ClaimStrings{"other-api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	badAudience, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongAudience).SignedString(priv)
	if _, err := c.Verify(badAudience); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected wrong audience to fail with ErrInvalidClaims, got %v", err)
	}

	withinLeeway := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		ID:        "id-4",
		Issuer:    "tokenguard",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-15 * time.Second)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	within, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, withinLeeway).SignedString(priv)
	if _, err := c.Verify(within); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	pastLeeway := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		ID:        "id-5",
		Issuer:    "tokenguard",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-3 * time.Minute)),
	}}
	expired, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, pastLeeway).SignedString(priv)
	if _, err := c.Verify(expired); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired token to fail with ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsFutureIssuedAt(t *testing.T) {
	c, err := NewCodec(Config{SigningMethod: MethodHS256, PrivateKey: testSecret})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	future := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		ID:        "id-6",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(2 * time.Hour)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, future).SignedString(testSecret)
	if _, err := c.Verify(token); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected future iat to fail with ErrInvalidClaims, got %v", err)
	}
}

func TestVerifyUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	c, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		ID:        "id-7",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := c.Verify(token); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected unknown kid to fail with ErrBadSignature, got %v", err)
	}

	good, err := c.Issue("alice", nil, "id-8", KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := c.Verify(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	c2, err := NewCodec(Config{SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k1": pub2}})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	if _, err := c2.Verify(good); err == nil {
		t.Fatal("expected verification failure with mismatched key set")
	}
	if _, err := c2.Issue("alice", nil, "id-9", KindAccess, time.Minute); err == nil {
		t.Fatal("expected verify-only codec to refuse signing")
	}
}
