package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBindingNotFound is returned by [Bindings.Lookup] when no live binding exists.
	ErrBindingNotFound = errors.New("refresh binding not found")
	// ErrRedisUnavailable wraps transport failures of the Redis backends.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrEmptyTokenID is returned when a write is attempted without a token ID.
	ErrEmptyTokenID = errors.New("empty token id")
)

// Blacklist tracks revoked token IDs until their expiry.
type Blacklist interface {
	// Revoke records tokenID as revoked until expiresAt. Repeated calls overwrite.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	// IsRevoked reports whether tokenID is revoked and not yet expired.
	// Expired entries found here are removed.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Purger
}

// Binding is the client IP a refresh token was issued to.
type Binding struct {
	IP        string
	ExpiresAt time.Time
}

// Bindings maps refresh-token IDs to the client IP that obtained them.
type Bindings interface {
	// Bind records ip for tokenID until expiresAt, overwriting any previous binding.
	Bind(ctx context.Context, tokenID, ip string, expiresAt time.Time) error
	// Lookup returns the live binding or ErrBindingNotFound.
	Lookup(ctx context.Context, tokenID string) (Binding, error)
	Purger
}

// Purger removes entries whose expiry is at or before now and reports how many were removed.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
