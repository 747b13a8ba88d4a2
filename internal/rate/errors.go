package rate

import "errors"

var (
	// ErrRateLimited is returned once a window budget is used up.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter read/write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
