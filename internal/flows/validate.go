package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/store"
)

// ValidateFailureKind classifies access-token rejections.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureNotReady
	ValidateFailureMissing
	ValidateFailureMalformed
	ValidateFailureBadSignature
	ValidateFailureExpired
	ValidateFailureWrongKind
	ValidateFailureRevoked
	ValidateFailureStore
)

// ValidateResult carries verified claims or the rejection reason.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
}

// ValidateDeps captures validation flow dependencies.
type ValidateDeps struct {
	Codec     TokenCodec
	Blacklist store.Blacklist
}

// RunValidate verifies an access token and checks its ID against the
// blacklist. A blacklist failure rejects the token.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	if token == "" {
		return ValidateResult{Failure: ValidateFailureMissing}
	}
	if deps.Codec == nil || deps.Blacklist == nil {
		return ValidateResult{Failure: ValidateFailureNotReady}
	}

	claims, err := deps.Codec.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpired):
			return ValidateResult{Failure: ValidateFailureExpired, Err: err}
		case errors.Is(err, jwt.ErrBadSignature):
			return ValidateResult{Failure: ValidateFailureBadSignature, Err: err}
		default:
			return ValidateResult{Failure: ValidateFailureMalformed, Err: err}
		}
	}
	if claims.Kind != jwt.KindAccess {
		return ValidateResult{Failure: ValidateFailureWrongKind, Claims: claims}
	}

	revoked, err := deps.Blacklist.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
	}
	if revoked {
		return ValidateResult{Failure: ValidateFailureRevoked, Claims: claims}
	}
	return ValidateResult{Claims: claims}
}
