package tokenguard

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown username or a wrong
	// password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingToken is returned when no token was supplied.
	ErrMissingToken = errors.New("missing token")
	// ErrTokenMalformed is returned when a token cannot be parsed, lacks
	// required claims, or is the wrong kind for the operation.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrTokenBadSignature is returned when signature or algorithm checks fail.
	ErrTokenBadSignature = errors.New("invalid token signature")
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned when the token ID is on the blacklist.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrInvalidBinding is returned when a refresh token has no live IP binding.
	ErrInvalidBinding = errors.New("refresh token binding not found")
	// ErrIPMismatch is returned when a refresh token is used from an IP other
	// than the one it was issued to.
	ErrIPMismatch = errors.New("refresh token used from a different IP")
	// ErrUserNotFound is returned by UserProvider implementations and by
	// Refresh when the token subject no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrInternal wraps store, provider and signing failures.
	ErrInternal = errors.New("internal error")
	// ErrLoginRateLimited is returned when the login throttle is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when the refresh throttle is exhausted.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
)
