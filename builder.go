package tokenguard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/tokenguard/internal/flows"
	"github.com/MrEthical07/tokenguard/internal/rate"
	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/password"
	"github.com/MrEthical07/tokenguard/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/MrEthical07/tokenguard"

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider   UserProvider
	auditSink      AuditSink
	logger         *zap.Logger
	tracerProvider trace.TracerProvider
	now            func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg.clone()
	return b
}

// WithRedis makes the engine keep its blacklist and bindings in Redis
// (unless Store.Backend forces memory) and enables the throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the audit destination. Events are only produced when
// Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.logger = log
	return b
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock replaces time.Now for token issuance, store expiry and purges.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. The purge
// sweeper is started unless Store.DisableSweeper is set; call Engine.Close
// to stop it.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config.clone()
	cfg.JWT.SigningMethod = strings.ToLower(cfg.JWT.SigningMethod)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	backend := cfg.Store.Backend
	if backend == StoreAuto {
		backend = StoreMemory
		if b.redis != nil {
			backend = StoreRedis
		}
	}
	if backend == StoreRedis && b.redis == nil {
		return nil, errors.New("redis store backend requires redis client")
	}
	if cfg.throttlesEnabled() && b.redis == nil {
		return nil, errors.New("login and refresh throttling require redis client")
	}

	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    bytes.Clone(cfg.JWT.PrivateKey),
		PublicKey:     bytes.Clone(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	// -------- STORES --------
	var (
		blacklist store.Blacklist
		bindings  store.Bindings
	)
	switch backend {
	case StoreRedis:
		blacklist = store.NewRedisBlacklist(b.redis, cfg.Store.RedisPrefix, now)
		bindings = store.NewRedisBindings(b.redis, cfg.Store.RedisPrefix, now)
	default:
		memCfg := store.MemoryConfig{Now: now, InlinePurgeEvery: cfg.Store.InlinePurgeEvery}
		blacklist = store.NewMemoryBlacklist(memCfg)
		bindings = store.NewMemoryBindings(memCfg)
	}

	engine := &Engine{
		config:       cfg,
		backend:      backend,
		codec:        codec,
		hasher:       hasher,
		blacklist:    blacklist,
		bindings:     bindings,
		redis:        b.redis,
		userProvider: b.userProvider,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		log:          log.Named("tokenguard"),
		tracer:       tp.Tracer(tracerName),
		clock:        now,
	}

	if b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			Prefix:                  cfg.Store.RedisPrefix,
			EnableLoginThrottle:     cfg.Security.EnableLoginThrottle,
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldown,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldown,
		})
	}

	engine.flow = flows.New(engine.flowDeps())

	// -------- SWEEPER --------
	engine.sweeper = store.NewSweeper(store.SweeperConfig{
		Interval: cfg.Store.PurgeInterval,
		Now:      now,
		Logger:   engine.log,
		OnPurge:  engine.onPurge,
	},
		store.Target{Name: "blacklist", Purger: blacklist},
		store.Target{Name: "bindings", Purger: bindings},
	)
	if !cfg.Store.DisableSweeper {
		engine.sweeper.Start()
	}

	b.built = true

	engine.log.Info("engine built",
		zap.String("store", string(backend)),
		zap.String("signing_method", cfg.JWT.SigningMethod),
		zap.Duration("access_ttl", cfg.JWT.AccessTTL),
		zap.Duration("refresh_ttl", cfg.JWT.RefreshTTL),
		zap.Bool("sweeper", !cfg.Store.DisableSweeper),
	)

	return engine, nil
}

func (e *Engine) flowDeps() flows.Deps {
	findUser := func(ctx context.Context, username string) (flows.UserRecord, error) {
		u, err := e.userProvider.FindUserByUsername(ctx, username)
		if err != nil {
			return flows.UserRecord{}, err
		}
		if u.Username == "" {
			u.Username = username
		}
		return flows.UserRecord{
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Roles:        u.Roles,
		}, nil
	}
	isUserNotFound := func(err error) bool {
		return errors.Is(err, ErrUserNotFound)
	}
	newTokenID := func() (string, error) {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		return id.String(), nil
	}
	warn := func(msg string, kv ...any) {
		e.log.Sugar().Warnw(msg, kv...)
	}

	login := flows.LoginDeps{
		AccessTTL:           e.config.JWT.AccessTTL,
		RefreshTTL:          e.config.JWT.RefreshTTL,
		Now:                 e.clock,
		ClientIPFromContext: ClientIPFromContext,
		FindUser:            findUser,
		IsUserNotFound:      isUserNotFound,
		VerifyPassword:      e.hasher.Verify,
		NewTokenID:          newTokenID,
		Bindings:            e.bindings,
		Codec:               e.codec,
		Warn:                warn,
	}
	refresh := flows.RefreshDeps{
		AccessTTL:           e.config.JWT.AccessTTL,
		RefreshTTL:          e.config.JWT.RefreshTTL,
		Now:                 e.clock,
		ClientIPFromContext: ClientIPFromContext,
		Codec:               e.codec,
		Blacklist:           e.blacklist,
		Bindings:            e.bindings,
		FindUser:            findUser,
		IsUserNotFound:      isUserNotFound,
	}
	if e.rateLimiter != nil {
		login.CheckLoginRate = e.rateLimiter.CheckLogin
		login.IncrementLoginRate = e.rateLimiter.IncrementLogin
		login.ResetLoginRate = e.rateLimiter.ResetLogin
		login.RateLimited = rate.ErrRateLimited
		refresh.CheckRefreshRate = e.rateLimiter.CheckRefresh
		refresh.RateLimited = rate.ErrRateLimited
	}

	return flows.Deps{
		Login:   login,
		Refresh: refresh,
		Logout: flows.LogoutDeps{
			Codec:     e.codec,
			Blacklist: e.blacklist,
			Bindings:  e.bindings,
		},
		Validate: flows.ValidateDeps{
			Codec:     e.codec,
			Blacklist: e.blacklist,
		},
	}
}
