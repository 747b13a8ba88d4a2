package tokenguard

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/password"
)

// Config holds every tunable of the Engine. Start from DefaultConfig and
// override fields; Build validates the result.
type Config struct {
	JWT      JWTConfig       `mapstructure:"jwt"`
	Store    StoreConfig     `mapstructure:"store"`
	Password password.Config `mapstructure:"password"`
	Security SecurityConfig  `mapstructure:"security"`
	Audit    AuditConfig     `mapstructure:"audit"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and lifetimes. Key material is never
// decoded from config files directly; loaders fill PrivateKey/PublicKey.
type JWTConfig struct {
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	SigningMethod string        `mapstructure:"signing_method"` // "hs256" (default) or "ed25519"
	PrivateKey    []byte        `mapstructure:"-"`
	PublicKey     []byte        `mapstructure:"-"`
	KeyID         string        `mapstructure:"key_id"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	Leeway        time.Duration `mapstructure:"leeway"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreBackend selects where revocation state lives.
type StoreBackend string

const (
	// StoreAuto uses Redis when a client is supplied and memory otherwise.
	StoreAuto   StoreBackend = ""
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
)

// StoreConfig controls the blacklist and binding stores and their sweeper.
type StoreConfig struct {
	Backend          StoreBackend  `mapstructure:"backend"`
	RedisPrefix      string        `mapstructure:"redis_prefix"`
	PurgeInterval    time.Duration `mapstructure:"purge_interval"`
	DisableSweeper   bool          `mapstructure:"disable_sweeper"`
	InlinePurgeEvery time.Duration `mapstructure:"inline_purge_every"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls throttling and bearer parsing. Throttles need Redis.
type SecurityConfig struct {
	EnableLoginThrottle   bool          `mapstructure:"enable_login_throttle"`
	EnableIPThrottle      bool          `mapstructure:"enable_ip_throttle"`
	MaxLoginAttempts      int           `mapstructure:"max_login_attempts"`
	LoginCooldown         time.Duration `mapstructure:"login_cooldown"`
	EnableRefreshThrottle bool          `mapstructure:"enable_refresh_throttle"`
	MaxRefreshAttempts    int           `mapstructure:"max_refresh_attempts"`
	RefreshCooldown       time.Duration `mapstructure:"refresh_cooldown"`
	BearerPrefix          string        `mapstructure:"bearer_prefix"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the defaults: 15 minute access tokens, 24 hour
// refresh tokens, HS256, a 5 minute sweep, bcrypt passwords.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    24 * time.Hour,
			SigningMethod: string(jwt.MethodHS256),
		},
		Store: StoreConfig{
			RedisPrefix:      "tg",
			PurgeInterval:    5 * time.Minute,
			InlinePurgeEvery: time.Minute,
		},
		Password: password.DefaultConfig(),
		Security: SecurityConfig{
			MaxLoginAttempts:   5,
			LoginCooldown:      15 * time.Minute,
			MaxRefreshAttempts: 20,
			RefreshCooldown:    time.Minute,
			BearerPrefix:       "Bearer ",
		},
		Audit:   AuditConfig{BufferSize: 1024, DropIfFull: true},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// clone deep-copies key material so callers cannot mutate a built engine.
func (c Config) clone() Config {
	c.JWT.PrivateKey = bytes.Clone(c.JWT.PrivateKey)
	c.JWT.PublicKey = bytes.Clone(c.JWT.PublicKey)
	return c
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency and reports the first problem
// wrapped in ErrInvalidConfig. Key material is checked when the codec is
// built.
func (c *Config) Validate() error {
	for _, check := range []func() string{c.JWT.problem, c.Store.problem, c.Security.problem, c.Audit.problem} {
		if p := check(); p != "" {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, p)
		}
	}
	return nil
}

func (j JWTConfig) problem() string {
	switch jwt.SigningMethod(strings.ToLower(j.SigningMethod)) {
	case jwt.MethodHS256, jwt.MethodEd25519:
	default:
		return fmt.Sprintf("jwt.signing_method %q is not supported", j.SigningMethod)
	}
	switch {
	case j.AccessTTL <= 0:
		return "jwt.access_ttl must be > 0"
	case j.RefreshTTL < j.AccessTTL:
		return "jwt.refresh_ttl must be >= jwt.access_ttl"
	case j.Leeway < 0 || j.Leeway > 2*time.Minute:
		return "jwt.leeway must be within [0, 2m]"
	}
	return ""
}

func (s StoreConfig) problem() string {
	switch s.Backend {
	case StoreAuto, StoreMemory, StoreRedis:
	default:
		return fmt.Sprintf("store.backend %q is not supported", s.Backend)
	}
	switch {
	case !s.DisableSweeper && s.PurgeInterval < time.Second:
		return "store.purge_interval must be >= 1s"
	case s.InlinePurgeEvery < 0:
		return "store.inline_purge_every must be >= 0"
	}
	return ""
}

func (s SecurityConfig) problem() string {
	switch {
	case s.EnableLoginThrottle && (s.MaxLoginAttempts <= 0 || s.LoginCooldown <= 0):
		return "security: login throttle needs max_login_attempts and login_cooldown > 0"
	case s.EnableRefreshThrottle && (s.MaxRefreshAttempts <= 0 || s.RefreshCooldown <= 0):
		return "security: refresh throttle needs max_refresh_attempts and refresh_cooldown > 0"
	case s.EnableIPThrottle && !s.EnableLoginThrottle:
		return "security.enable_ip_throttle requires enable_login_throttle"
	case strings.TrimSpace(s.BearerPrefix) == "":
		return "security.bearer_prefix must not be blank"
	}
	return ""
}

func (a AuditConfig) problem() string {
	if a.Enabled && a.BufferSize <= 0 {
		return "audit.buffer_size must be > 0 when audit is enabled"
	}
	return ""
}

func (c *Config) throttlesEnabled() bool {
	return c.Security.EnableLoginThrottle || c.Security.EnableRefreshThrottle
}
