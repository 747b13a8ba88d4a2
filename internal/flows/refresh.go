package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/store"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNotReady
	RefreshFailureMissing
	RefreshFailureMalformed
	RefreshFailureRevoked
	RefreshFailureUserNotFound
	RefreshFailureInvalidBinding
	RefreshFailureIPMismatch
	RefreshFailureExpired
	RefreshFailureBadSignature
	RefreshFailureRateLimited
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	TokenID      string
	Subject      string
	ClientIP     string
	BoundIP      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	Codec          TokenCodec
	Blacklist      store.Blacklist
	Bindings       store.Bindings
	FindUser       UserLookup
	IsUserNotFound func(error) bool

	// CheckRefreshRate is optional; errors matching RateLimited throttle,
	// anything else is a store failure.
	CheckRefreshRate func(context.Context, string) error
	RateLimited      error
}

func (d *RefreshDeps) ready() bool {
	return d.Codec != nil && d.Blacklist != nil && d.Bindings != nil && d.FindUser != nil
}

// RunRefresh validates a refresh token and rotates the pair.
//
// The cheap server-side checks (blacklist, user, IP binding) run on
// unverified claims before the signature is checked; nothing extracted
// before verification is trusted for output.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if refreshToken == "" {
		return RefreshResult{Failure: RefreshFailureMissing}
	}
	if !deps.ready() {
		return RefreshResult{Failure: RefreshFailureNotReady}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = noClientIP
	}
	if deps.IsUserNotFound == nil {
		deps.IsUserNotFound = func(error) bool { return false }
	}

	res := RefreshResult{ClientIP: deps.ClientIPFromContext(ctx)}

	tokenID, err := deps.Codec.ExtractTokenID(refreshToken)
	if err != nil {
		return res.fail(RefreshFailureMalformed, err)
	}
	res.TokenID = tokenID

	revoked, err := deps.Blacklist.IsRevoked(ctx, tokenID)
	if err != nil {
		return res.fail(RefreshFailureStore, err)
	}
	if revoked {
		return res.fail(RefreshFailureRevoked, nil)
	}

	subject, err := deps.Codec.ExtractSubject(refreshToken)
	if err != nil {
		return res.fail(RefreshFailureMalformed, err)
	}
	res.Subject = subject

	user, err := deps.FindUser(ctx, subject)
	if err != nil {
		if deps.IsUserNotFound(err) {
			return res.fail(RefreshFailureUserNotFound, err)
		}
		return res.fail(RefreshFailureStore, err)
	}

	binding, err := deps.Bindings.Lookup(ctx, tokenID)
	if err != nil {
		if errors.Is(err, store.ErrBindingNotFound) {
			return res.fail(RefreshFailureInvalidBinding, err)
		}
		return res.fail(RefreshFailureStore, err)
	}
	res.BoundIP = binding.IP
	if binding.IP != res.ClientIP {
		return res.fail(RefreshFailureIPMismatch, nil)
	}

	claims, err := deps.Codec.Verify(refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpired):
			return res.fail(RefreshFailureExpired, err)
		case errors.Is(err, jwt.ErrBadSignature):
			return res.fail(RefreshFailureBadSignature, err)
		default:
			return res.fail(RefreshFailureMalformed, err)
		}
	}
	if claims.Kind != jwt.KindRefresh {
		return res.fail(RefreshFailureMalformed, errors.New("not a refresh token"))
	}

	if deps.CheckRefreshRate != nil {
		if err := deps.CheckRefreshRate(ctx, tokenID); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return res.fail(RefreshFailureRateLimited, err)
			}
			return res.fail(RefreshFailureStore, err)
		}
	}

	now := deps.Now()
	if err := deps.Bindings.Bind(ctx, tokenID, binding.IP, now.Add(deps.RefreshTTL)); err != nil {
		return res.fail(RefreshFailureStore, err)
	}
	// A logout that ran since the first check either revoked already or
	// will see the extended binding and revoke past it.
	revoked, err = deps.Blacklist.IsRevoked(ctx, tokenID)
	if err != nil {
		return res.fail(RefreshFailureStore, err)
	}
	if revoked {
		return res.fail(RefreshFailureRevoked, nil)
	}

	access, err := deps.Codec.Issue(user.Username, user.Roles, tokenID, jwt.KindAccess, deps.AccessTTL)
	if err != nil {
		return res.fail(RefreshFailureIssue, err)
	}
	refresh, err := deps.Codec.Issue(user.Username, user.Roles, tokenID, jwt.KindRefresh, deps.RefreshTTL)
	if err != nil {
		return res.fail(RefreshFailureIssue, err)
	}

	res.AccessToken = access
	res.RefreshToken = refresh
	res.ExpiresAt = now.Add(deps.AccessTTL)
	return res
}

func (r RefreshResult) fail(kind RefreshFailureKind, err error) RefreshResult {
	r.Failure = kind
	r.Err = err
	return r
}
