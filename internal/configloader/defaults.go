package configloader

import (
	"time"

	"github.com/MrEthical07/tokenguard"
)

// defaults registers every key so environment overrides apply to keys
// absent from the file.
func defaults() map[string]interface{} {
	auth := tokenguard.DefaultConfig()
	return map[string]interface{}{
		"server.addr":             ":8080",
		"server.cors_origins":     []string{"http://localhost:5173"},
		"server.trust_proxy":      false,
		"server.read_timeout":     10 * time.Second,
		"server.write_timeout":    10 * time.Second,
		"server.shutdown_timeout": 15 * time.Second,

		"log.level":    "info",
		"log.dev_mode": false,

		"redis.addr":     "",
		"redis.password": "",
		"redis.db":       0,
		"redis.embedded": false,

		"postgres.dsn":                 "",
		"postgres.max_conns":           int32(0),
		"postgres.max_conn_idle_time":  time.Duration(0),
		"postgres.health_check_period": time.Duration(0),

		"keys.secret":           "",
		"keys.private_key_file": "",
		"keys.public_key_file":  "",

		"auth.jwt.access_ttl":     auth.JWT.AccessTTL,
		"auth.jwt.refresh_ttl":    auth.JWT.RefreshTTL,
		"auth.jwt.signing_method": auth.JWT.SigningMethod,
		"auth.jwt.key_id":         auth.JWT.KeyID,
		"auth.jwt.issuer":         auth.JWT.Issuer,
		"auth.jwt.audience":       auth.JWT.Audience,
		"auth.jwt.leeway":         auth.JWT.Leeway,

		"auth.store.backend":            string(auth.Store.Backend),
		"auth.store.redis_prefix":       auth.Store.RedisPrefix,
		"auth.store.purge_interval":     auth.Store.PurgeInterval,
		"auth.store.disable_sweeper":    auth.Store.DisableSweeper,
		"auth.store.inline_purge_every": auth.Store.InlinePurgeEvery,

		"auth.password.algorithm":          string(auth.Password.Algorithm),
		"auth.password.bcrypt_cost":        auth.Password.BcryptCost,
		"auth.password.argon2.memory_kb":   auth.Password.Argon2.Memory,
		"auth.password.argon2.time":        auth.Password.Argon2.Time,
		"auth.password.argon2.parallelism": auth.Password.Argon2.Parallelism,
		"auth.password.argon2.salt_length": auth.Password.Argon2.SaltLength,
		"auth.password.argon2.key_length":  auth.Password.Argon2.KeyLength,
		"auth.password.min_password_bytes": auth.Password.MinPasswordBytes,
		"auth.password.max_password_bytes": auth.Password.MaxPasswordBytes,

		"auth.security.enable_login_throttle":   auth.Security.EnableLoginThrottle,
		"auth.security.enable_ip_throttle":      auth.Security.EnableIPThrottle,
		"auth.security.max_login_attempts":      auth.Security.MaxLoginAttempts,
		"auth.security.login_cooldown":          auth.Security.LoginCooldown,
		"auth.security.enable_refresh_throttle": auth.Security.EnableRefreshThrottle,
		"auth.security.max_refresh_attempts":    auth.Security.MaxRefreshAttempts,
		"auth.security.refresh_cooldown":        auth.Security.RefreshCooldown,
		"auth.security.bearer_prefix":           auth.Security.BearerPrefix,

		"auth.audit.enabled":      auth.Audit.Enabled,
		"auth.audit.buffer_size":  auth.Audit.BufferSize,
		"auth.audit.drop_if_full": auth.Audit.DropIfFull,

		"auth.metrics.enabled":                   auth.Metrics.Enabled,
		"auth.metrics.enable_latency_histograms": auth.Metrics.EnableLatencyHistograms,
	}
}
