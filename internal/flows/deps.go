package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/tokenguard/jwt"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Login    LoginDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Validate ValidateDeps
}

// TokenCodec is the part of jwt.Codec the flows use.
type TokenCodec interface {
	Issue(subject string, roles []string, tokenID string, kind jwt.Kind, ttl time.Duration) (string, error)
	Verify(token string) (*jwt.Claims, error)
	Inspect(token string) (*jwt.Claims, error)
	ExtractTokenID(token string) (string, error)
	ExtractSubject(token string) (string, error)
}

// UserRecord is the flow-local view of a user.
type UserRecord struct {
	Username     string
	PasswordHash string
	Roles        []string
}

// UserLookup finds a user by username. Flows classify its errors with the
// matching IsUserNotFound func.
type UserLookup func(ctx context.Context, username string) (UserRecord, error)

func noWarn(string, ...any) {}

func noClientIP(context.Context) string { return "" }
