package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by the Redis backends.
const DefaultRedisPrefix = "tg"

// isRevokedScript answers the revocation check and drops the entry in the
// same round trip when it has already expired.
//
//	KEYS[1] revocation zset
//	ARGV[1] token id
//	ARGV[2] now (unix ms)
const isRevokedScript = `
local score = redis.call("ZSCORE", KEYS[1], ARGV[1])
if not score then
  return 0
end
if tonumber(score) <= tonumber(ARGV[2]) then
  redis.call("ZREM", KEYS[1], ARGV[1])
  return 0
end
return 1
`

var isRevokedLua = redis.NewScript(isRevokedScript)

// RedisBlacklist is a [Blacklist] shared by every instance pointed at the
// same Redis. Entries live in a single sorted set scored by expiry, so a
// purge is one ZREMRANGEBYSCORE.
//
//	Performance: 1 Redis command per call.
type RedisBlacklist struct {
	redis redis.UniversalClient
	key   string
	now   func() time.Time
}

// NewRedisBlacklist creates a blacklist under "<prefix>:revoked".
// An empty prefix uses [DefaultRedisPrefix]; a nil now uses time.Now.
func NewRedisBlacklist(client redis.UniversalClient, prefix string, now func() time.Time) *RedisBlacklist {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if now == nil {
		now = time.Now
	}
	return &RedisBlacklist{redis: client, key: prefix + ":revoked", now: now}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	err := b.redis.ZAdd(ctx, b.key, redis.Z{
		Score:  float64(expiresAt.UnixMilli()),
		Member: tokenID,
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	res, err := isRevokedLua.Run(ctx, b.redis, []string{b.key}, tokenID, b.now().UnixMilli()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

func (b *RedisBlacklist) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	removed, err := b.redis.ZRemRangeByScore(ctx, b.key, "-inf", strconv.FormatInt(now.UnixMilli(), 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(removed), nil
}

// Len returns the number of stored entries, expired or not.
func (b *RedisBlacklist) Len(ctx context.Context) (int64, error) {
	n, err := b.redis.ZCard(ctx, b.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// RedisBindings is a [Bindings] backed by one hash per refresh token.
// Redis expires each hash at the binding's expiry, so PurgeExpired has
// nothing to do.
type RedisBindings struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisBindings creates a binding store under "<prefix>:bind:<tokenID>".
func NewRedisBindings(client redis.UniversalClient, prefix string, now func() time.Time) *RedisBindings {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if now == nil {
		now = time.Now
	}
	return &RedisBindings{redis: client, prefix: prefix, now: now}
}

func (s *RedisBindings) key(tokenID string) string {
	return s.prefix + ":bind:" + tokenID
}

func (s *RedisBindings) Bind(ctx context.Context, tokenID, ip string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	key := s.key(tokenID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "ip", ip, "exp", expiresAt.UnixMilli())
		pipe.PExpireAt(ctx, key, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisBindings) Lookup(ctx context.Context, tokenID string) (Binding, error) {
	if tokenID == "" {
		return Binding{}, ErrBindingNotFound
	}
	vals, err := s.redis.HMGet(ctx, s.key(tokenID), "ip", "exp").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Binding{}, ErrBindingNotFound
		}
		return Binding{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Binding{}, ErrBindingNotFound
	}

	ip, _ := vals[0].(string)
	rawExp, _ := vals[1].(string)
	expMillis, err := strconv.ParseInt(rawExp, 10, 64)
	if err != nil {
		return Binding{}, ErrBindingNotFound
	}
	expiresAt := time.UnixMilli(expMillis)
	if !expiresAt.After(s.now()) {
		return Binding{}, ErrBindingNotFound
	}
	return Binding{IP: ip, ExpiresAt: expiresAt}, nil
}

func (s *RedisBindings) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
