package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Prefix                  string
	EnableLoginThrottle     bool
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// hitScript increments a counter and starts its window on the first hit,
// in one round trip.
//
//	KEYS[1] counter
//	ARGV[1] window (ms)
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// window is one fixed-window budget. A nil window is disabled and allows
// everything.
type window struct {
	rdb    redis.UniversalClient
	prefix string
	max    int64
	ttl    time.Duration
}

func (w *window) key(subject string) string {
	return w.prefix + subject
}

func (w *window) count(ctx context.Context, subject string) (int64, error) {
	n, err := w.rdb.Get(ctx, w.key(subject)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return max(n, 0), nil
}

// exhausted reports whether subject has already used the whole budget.
func (w *window) exhausted(ctx context.Context, subject string) error {
	if w == nil || subject == "" {
		return nil
	}
	n, err := w.count(ctx, subject)
	if err != nil {
		return err
	}
	if n >= w.max {
		return ErrRateLimited
	}
	return nil
}

// hit spends one unit and reports ErrRateLimited once the budget is exceeded.
func (w *window) hit(ctx context.Context, subject string) error {
	if w == nil || subject == "" {
		return nil
	}
	n, err := hitScript.Run(ctx, w.rdb, []string{w.key(subject)}, w.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n > w.max {
		return ErrRateLimited
	}
	return nil
}

// Limiter enforces fixed-window budgets for failed logins (per username and
// optionally per IP) and for refreshes (per token ID) using Redis counters.
type Limiter struct {
	rdb       redis.UniversalClient
	loginUser *window
	loginIP   *window
	refresh   *window
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(rdb redis.UniversalClient, cfg Config) *Limiter {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tg"
	}
	prefix += ":rl:"

	l := &Limiter{rdb: rdb}
	if cfg.EnableLoginThrottle {
		attempts := int64(cfg.MaxLoginAttempts)
		l.loginUser = &window{rdb: rdb, prefix: prefix + "login:u:", max: attempts, ttl: cfg.LoginCooldownDuration}
		if cfg.EnableIPThrottle {
			l.loginIP = &window{rdb: rdb, prefix: prefix + "login:ip:", max: attempts, ttl: cfg.LoginCooldownDuration}
		}
	}
	if cfg.EnableRefreshThrottle {
		l.refresh = &window{rdb: rdb, prefix: prefix + "refresh:", max: int64(cfg.MaxRefreshAttempts), ttl: cfg.RefreshCooldownDuration}
	}
	return l
}

// CheckLogin returns ErrRateLimited when the username, or the IP when IP
// throttling is on, has used up its failed-login budget.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	if err := l.loginUser.exhausted(ctx, username); err != nil {
		return err
	}
	return l.loginIP.exhausted(ctx, ip)
}

// IncrementLogin records a failed login attempt for the username and IP.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	userErr := l.loginUser.hit(ctx, username)
	if userErr != nil && !errors.Is(userErr, ErrRateLimited) {
		return userErr
	}
	if err := l.loginIP.hit(ctx, ip); err != nil {
		return err
	}
	return userErr
}

// ResetLogin clears the failed-login counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, username, ip string) error {
	var keys []string
	for _, c := range []struct {
		w       *window
		subject string
	}{{l.loginUser, username}, {l.loginIP, ip}} {
		if c.w != nil && c.subject != "" {
			keys = append(keys, c.w.key(c.subject))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := l.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRefresh counts one refresh for tokenID and returns ErrRateLimited
// once the window budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, tokenID string) error {
	return l.refresh.hit(ctx, tokenID)
}

// LoginAttempts returns the failed-attempt counter for a username. Unknown
// usernames read as zero, as does everything while login throttling is off.
func (l *Limiter) LoginAttempts(ctx context.Context, username string) (int, error) {
	if l.loginUser == nil {
		return 0, nil
	}
	n, err := l.loginUser.count(ctx, username)
	return int(n), err
}
