package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm used by a [Codec].
//
// SigningMethod values are intended to be configured during initialization and then treated as immutable.
type SigningMethod string

const (
	// MethodEd25519 signs tokens with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs tokens with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// Kind distinguishes the two halves of a correlated token pair.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrMalformed is returned when a token cannot be parsed at all.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature is returned when the signature, algorithm or key id check fails.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrExpired is returned when the token's exp has passed.
	ErrExpired = errors.New("token expired")
	// ErrInvalidClaims is returned for issuer, audience, iat or missing-claim failures.
	ErrInvalidClaims = errors.New("token claims invalid")
)

// Config defines how a [Codec] signs and verifies tokens.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	// Now overrides the clock used for iat/exp. Defaults to time.Now.
	Now func() time.Time
}

// Claims is the claim set carried by every token.
type Claims struct {
	Roles []string `json:"roles"`
	Kind  Kind     `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// TokenID returns the jti claim.
func (c *Claims) TokenID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

// Expiry returns the exp claim, or the zero time when it is absent.
func (c *Claims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Codec issues and verifies signed tokens.
//
// Codec is safe for concurrent use; all state is read-only after [NewCodec].
type Codec struct {
	config    Config
	keys      *keyring
	now       func() time.Time
	validator *jwt.Validator
}

// NewCodec validates cfg and decodes its keys. Errors for key material
// wrap [ErrInvalidKey].
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: leeway must be within [0, 2m]")
	}
	keys, err := newKeyring(cfg)
	if err != nil {
		return nil, err
	}
	cfg.KeyID = keys.kid

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	checks := []jwt.ParserOption{jwt.WithIssuedAt(), jwt.WithTimeFunc(now)}
	if cfg.Leeway > 0 {
		checks = append(checks, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		checks = append(checks, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		checks = append(checks, jwt.WithAudience(cfg.Audience))
	}
	return &Codec{config: cfg, keys: keys, now: now, validator: jwt.NewValidator(checks...)}, nil
}

// Issue signs a token for subject carrying roles and tokenID, valid for ttl.
//
// Issue may return an error when input validation fails or no signing key is configured.
// Issue does not mutate shared state and can be used concurrently.
func (c *Codec) Issue(subject string, roles []string, tokenID string, kind Kind, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("invalid TTL")
	}
	if subject == "" {
		return "", errors.New("subject required")
	}
	if tokenID == "" {
		return "", errors.New("token id required")
	}

	now := c.now()
	claims := Claims{
		Roles: append([]string(nil), roles...),
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	if c.keys.sign == nil {
		return "", fmt.Errorf("%w: codec is verify-only", ErrInvalidKey)
	}
	token := jwt.NewWithClaims(c.keys.method, claims)
	if c.keys.kid != "" {
		token.Header["kid"] = c.keys.kid
	}
	return token.SignedString(c.keys.sign)
}

// Verify checks signature, algorithm, expiry and the configured issuer and
// audience, and returns the claims unchanged on success. A token stays valid
// up to and including the instant of its exp claim (plus leeway).
//
// Errors wrap one of [ErrMalformed], [ErrBadSignature], [ErrExpired] or [ErrInvalidClaims].
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	claims, err := c.parse(tokenStr, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if err := c.validator.Validate(withoutExpiry{claims}); err != nil {
		return nil, classify(err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidClaims)
	}
	if c.now().After(claims.ExpiresAt.Add(c.config.Leeway)) {
		return nil, fmt.Errorf("%w: exp %s", ErrExpired, claims.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return claims, nil
}

// withoutExpiry hides exp from jwt.Validator, which rejects a token at the
// exp instant itself. Verify checks exp on its own.
type withoutExpiry struct {
	*Claims
}

func (withoutExpiry) GetExpirationTime() (*jwt.NumericDate, error) {
	return nil, nil
}

// Inspect verifies the signature but skips time-based claim checks, so a
// token at or past its expiry still yields its claims.
func (c *Codec) Inspect(tokenStr string) (*Claims, error) {
	return c.parse(tokenStr, jwt.WithoutClaimsValidation())
}

// ExtractTokenID returns the jti claim without verifying the token.
// The result must not be trusted for authorization decisions.
func (c *Codec) ExtractTokenID(tokenStr string) (string, error) {
	claims, err := c.extract(tokenStr)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing jti", ErrMalformed)
	}
	return claims.ID, nil
}

// ExtractSubject returns the sub claim without verifying the token.
func (c *Codec) ExtractSubject(tokenStr string) (string, error) {
	claims, err := c.extract(tokenStr)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub", ErrMalformed)
	}
	return claims.Subject, nil
}

// ExtractExpiry returns the exp claim without verifying the token.
func (c *Codec) ExtractExpiry(tokenStr string) (time.Time, error) {
	claims, err := c.extract(tokenStr)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp", ErrMalformed)
	}
	return claims.ExpiresAt.Time, nil
}

// extract only base64- and JSON-decodes the payload.
func (c *Codec) extract(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}

func (c *Codec) parse(tokenStr string, extra ...jwt.ParserOption) (*Claims, error) {
	options := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{c.keys.method.Alg()}),
	}, extra...)

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, c.keys.verifyKey)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}
