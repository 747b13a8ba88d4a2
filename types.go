package tokenguard

import (
	"context"
	"strings"
	"time"
)

// UserRecord is what a UserProvider returns for a username.
type UserRecord struct {
	Username     string
	PasswordHash string
	Roles        []string
}

// UserProvider looks users up by username. Implementations return an error
// wrapping ErrUserNotFound when the user does not exist; any other error is
// treated as a backend failure.
type UserProvider interface {
	FindUserByUsername(ctx context.Context, username string) (UserRecord, error)
}

// TokenPair is a correlated access/refresh pair sharing one token ID.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Identity is the verified caller attached to a request.
type Identity struct {
	Subject   string
	Roles     []string
	TokenID   string
	ExpiresAt time.Time
}

// HasRole reports whether the identity carries role. Comparison ignores
// case and a leading "ROLE_".
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	want := NormalizeRole(role)
	for _, r := range i.Roles {
		if NormalizeRole(r) == want {
			return true
		}
	}
	return false
}

// NormalizeRole upper-cases role and strips a "ROLE_" prefix, so "admin",
// "ADMIN" and "ROLE_ADMIN" compare equal.
func NormalizeRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	return strings.TrimPrefix(role, "ROLE_")
}
