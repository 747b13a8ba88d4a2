package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/store"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureNotReady
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureUserLookup
	LoginFailureTokenID
	LoginFailureBind
	LoginFailureIssue
)

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	Reason       string
	Username     string
	ClientIP     string
	TokenID      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	// Throttle hooks are optional. IncrementLoginRate returning an error
	// matching RateLimited turns the failure into a throttle.
	CheckLoginRate     func(context.Context, string, string) error
	IncrementLoginRate func(context.Context, string, string) error
	ResetLoginRate     func(context.Context, string, string) error
	RateLimited        error

	FindUser       UserLookup
	IsUserNotFound func(error) bool
	VerifyPassword func(password, encodedHash string) (bool, error)
	NewTokenID     func() (string, error)

	Bindings store.Bindings
	Codec    TokenCodec
	Warn     func(string, ...any)
}

func (d *LoginDeps) ready() bool {
	return d.FindUser != nil && d.VerifyPassword != nil && d.NewTokenID != nil &&
		d.Bindings != nil && d.Codec != nil
}

// RunLogin checks credentials, binds a fresh token ID to the client IP and
// issues the correlated access/refresh pair. Unknown users and wrong
// passwords produce the same failure kind.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	if !deps.ready() {
		return LoginResult{Failure: LoginFailureNotReady}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = noClientIP
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.IsUserNotFound == nil {
		deps.IsUserNotFound = func(error) bool { return false }
	}

	ip := deps.ClientIPFromContext(ctx)
	res := LoginResult{Username: username, ClientIP: ip}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, username, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return res.fail(LoginFailureRateLimited, err, "")
			}
			deps.Warn("tokenguard: login throttle check failed", "error", err)
		}
	}

	if username == "" || password == "" {
		return deps.credentialFailure(ctx, res, "empty_credentials")
	}

	user, err := deps.FindUser(ctx, username)
	if err != nil {
		if deps.IsUserNotFound(err) {
			return deps.credentialFailure(ctx, res, "user_not_found")
		}
		return res.fail(LoginFailureUserLookup, err, "")
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		deps.Warn("tokenguard: password verification error", "error", err)
	}
	if err != nil || !ok {
		return deps.credentialFailure(ctx, res, "password_mismatch")
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, username, ip); err != nil {
			deps.Warn("tokenguard: login throttle reset failed", "error", err)
		}
	}

	tokenID, err := deps.NewTokenID()
	if err != nil {
		return res.fail(LoginFailureTokenID, err, "")
	}
	res.TokenID = tokenID

	now := deps.Now()
	// The binding must exist before any token carrying tokenID leaves the process.
	if err := deps.Bindings.Bind(ctx, tokenID, ip, now.Add(deps.RefreshTTL)); err != nil {
		return res.fail(LoginFailureBind, err, "")
	}

	access, err := deps.Codec.Issue(user.Username, user.Roles, tokenID, jwt.KindAccess, deps.AccessTTL)
	if err != nil {
		return res.fail(LoginFailureIssue, err, "")
	}
	refresh, err := deps.Codec.Issue(user.Username, user.Roles, tokenID, jwt.KindRefresh, deps.RefreshTTL)
	if err != nil {
		return res.fail(LoginFailureIssue, err, "")
	}

	res.AccessToken = access
	res.RefreshToken = refresh
	res.ExpiresAt = now.Add(deps.AccessTTL)
	return res
}

func (d *LoginDeps) credentialFailure(ctx context.Context, res LoginResult, reason string) LoginResult {
	if d.IncrementLoginRate != nil {
		if err := d.IncrementLoginRate(ctx, res.Username, res.ClientIP); err != nil {
			if d.RateLimited != nil && errors.Is(err, d.RateLimited) {
				return res.fail(LoginFailureRateLimited, err, reason)
			}
			d.Warn("tokenguard: login throttle increment failed", "error", err)
		}
	}
	return res.fail(LoginFailureInvalidCredentials, nil, reason)
}

func (r LoginResult) fail(kind LoginFailureKind, err error, reason string) LoginResult {
	r.Failure = kind
	r.Err = err
	r.Reason = reason
	return r
}
