package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/store"
)

// LogoutFailureKind classifies logout failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureNotReady
	LogoutFailureMissing
	LogoutFailureMalformed
	LogoutFailureBadSignature
	LogoutFailureStore
)

// LogoutResult reports what was revoked and until when.
type LogoutResult struct {
	Failure      LogoutFailureKind
	Err          error
	TokenID      string
	Subject      string
	RevokedUntil time.Time
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Codec     TokenCodec
	Blacklist store.Blacklist
	Bindings  store.Bindings
}

// RunLogout revokes the token ID carried by a signed token. Expired tokens
// are accepted; forged ones are not. The entry is kept until the later of
// the token's expiry and its refresh binding's expiry, so one revoke covers
// both halves of the pair.
func RunLogout(ctx context.Context, token string, deps LogoutDeps) LogoutResult {
	if token == "" {
		return LogoutResult{Failure: LogoutFailureMissing}
	}
	if deps.Codec == nil || deps.Blacklist == nil {
		return LogoutResult{Failure: LogoutFailureNotReady}
	}

	claims, err := deps.Codec.Inspect(token)
	if err != nil {
		if errors.Is(err, jwt.ErrBadSignature) {
			return LogoutResult{Failure: LogoutFailureBadSignature, Err: err}
		}
		return LogoutResult{Failure: LogoutFailureMalformed, Err: err}
	}

	res := LogoutResult{
		TokenID:      claims.TokenID(),
		Subject:      claims.Subject,
		RevokedUntil: claims.Expiry(),
	}
	if res.TokenID == "" {
		res.Failure = LogoutFailureMalformed
		res.Err = jwt.ErrMalformed
		return res
	}

	// Revoke before reading the binding. A refresh that slips past this
	// revoke has already extended the binding, so the lookup below sees it.
	if err := deps.Blacklist.Revoke(ctx, res.TokenID, res.RevokedUntil); err != nil {
		res.Failure = LogoutFailureStore
		res.Err = err
		return res
	}
	if deps.Bindings == nil {
		return res
	}

	binding, err := deps.Bindings.Lookup(ctx, res.TokenID)
	switch {
	case errors.Is(err, store.ErrBindingNotFound):
		return res
	case err != nil:
		res.Failure = LogoutFailureStore
		res.Err = err
		return res
	case !binding.ExpiresAt.After(res.RevokedUntil):
		return res
	}

	res.RevokedUntil = binding.ExpiresAt
	if err := deps.Blacklist.Revoke(ctx, res.TokenID, res.RevokedUntil); err != nil {
		res.Failure = LogoutFailureStore
		res.Err = err
	}
	return res
}
