package tokenguard

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/tokenguard/internal/flows"
	"github.com/MrEthical07/tokenguard/internal/rate"
	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/password"
	"github.com/MrEthical07/tokenguard/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Engine issues, refreshes, revokes and validates tokens. It is safe for
// concurrent use once built.
type Engine struct {
	config       Config
	backend      StoreBackend
	codec        *jwt.Codec
	hasher       *password.Hasher
	blacklist    store.Blacklist
	bindings     store.Bindings
	redis        redis.UniversalClient
	rateLimiter  *rate.Limiter
	userProvider UserProvider
	flow         flows.Service
	sweeper      *store.Sweeper
	audit        *auditDispatcher
	metrics      *Metrics
	log          *zap.Logger
	tracer       trace.Tracer
	clock        func() time.Time

	closeOnce sync.Once
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return DefaultConfig()
	}
	return e.config.clone()
}

// StoreBackend reports where revocation state lives.
func (e *Engine) StoreBackend() StoreBackend {
	if e == nil {
		return StoreAuto
	}
	return e.backend
}

// Close stops the sweeper, waiting for a running purge, then drains the
// audit buffer. Close is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.sweeper != nil {
			_ = e.sweeper.Stop(context.Background())
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
LOGIN
====================================
*/

// Login checks username and password and returns a correlated token pair
// whose refresh half is bound to the client IP set with WithClientIP.
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, username, password string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "tokenguard.Login")
	res := e.flow.Login(ctx, username, password)
	err := e.loginError(ctx, res)
	endSpan(span, err, attribute.String("tokenguard.token_id", res.TokenID))
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.record(ctx, auditEventLoginSuccess).token(res.Username, res.TokenID).expires(res.ExpiresAt).send()
	return TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, nil
}

func (e *Engine) loginError(ctx context.Context, res flows.LoginResult) error {
	failed := func(eventType string, err error) {
		e.record(ctx, eventType).token("", res.TokenID).fail(err).
			meta("identifier", res.Username).meta("reason", res.Reason).send()
	}

	switch res.Failure {
	case flows.LoginFailureNone:
		return nil
	case flows.LoginFailureNotReady:
		return ErrEngineNotReady
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		failed(auditEventLoginRateLimited, ErrLoginRateLimited)
		return ErrLoginRateLimited
	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		failed(auditEventLoginFailure, ErrInvalidCredentials)
		return ErrInvalidCredentials
	case flows.LoginFailureUserLookup, flows.LoginFailureBind:
		e.metricInc(MetricStoreFailure)
	}

	e.metricInc(MetricLoginFailure)
	e.log.Error("login failed", zap.Int("failure", int(res.Failure)), zap.Error(res.Err))
	err := internalError(res.Err)
	failed(auditEventLoginFailure, err)
	return err
}

/*
====================================
REFRESH
====================================
*/

// Refresh rotates a refresh token presented from the IP it was bound to.
// The new pair keeps the token ID; roles are reloaded from the user provider.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, ErrMissingToken
	}
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "tokenguard.Refresh")
	res := e.flow.Refresh(ctx, refreshToken)
	err := e.refreshError(ctx, res)
	endSpan(span, err, attribute.String("tokenguard.token_id", res.TokenID))
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.record(ctx, auditEventRefreshSuccess).token(res.Subject, res.TokenID).expires(res.ExpiresAt).send()
	return TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, nil
}

func (e *Engine) refreshError(ctx context.Context, res flows.RefreshResult) error {
	var err error

	switch res.Failure {
	case flows.RefreshFailureNone:
		return nil
	case flows.RefreshFailureNotReady:
		return ErrEngineNotReady
	case flows.RefreshFailureMissing:
		err = ErrMissingToken
	case flows.RefreshFailureMalformed:
		err = ErrTokenMalformed
	case flows.RefreshFailureRevoked:
		e.metricInc(MetricRefreshRevoked)
		err = ErrTokenRevoked
	case flows.RefreshFailureUserNotFound:
		err = ErrUserNotFound
	case flows.RefreshFailureInvalidBinding:
		err = ErrInvalidBinding
	case flows.RefreshFailureIPMismatch:
		e.metricInc(MetricRefreshIPMismatch)
		err = ErrIPMismatch
	case flows.RefreshFailureExpired:
		err = ErrTokenExpired
	case flows.RefreshFailureBadSignature:
		err = ErrTokenBadSignature
	case flows.RefreshFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		e.record(ctx, auditEventRefreshRateLimited).token(res.Subject, res.TokenID).fail(ErrRefreshRateLimited).send()
		return ErrRefreshRateLimited
	default:
		if res.Failure == flows.RefreshFailureStore {
			e.metricInc(MetricStoreFailure)
		}
		e.log.Error("refresh failed", zap.Int("failure", int(res.Failure)), zap.String("token_id", res.TokenID), zap.Error(res.Err))
		err = internalError(res.Err)
	}

	e.metricInc(MetricRefreshFailure)
	e.record(ctx, auditEventRefreshInvalid).token(res.Subject, res.TokenID).fail(err).meta("bound_ip", res.BoundIP).send()
	return err
}

/*
====================================
LOGOUT
====================================
*/

// Logout revokes the token ID of a signed token until the later of its own
// expiry and its refresh binding's expiry, so both halves of the pair are
// rejected from then on. Expired tokens are accepted; forged ones are not.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrMissingToken
	}
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "tokenguard.Logout")
	res := e.flow.Logout(ctx, token)

	var err error
	switch res.Failure {
	case flows.LogoutFailureNone:
	case flows.LogoutFailureNotReady:
		err = ErrEngineNotReady
	case flows.LogoutFailureMissing:
		err = ErrMissingToken
	case flows.LogoutFailureBadSignature:
		err = ErrTokenBadSignature
	case flows.LogoutFailureStore:
		e.metricInc(MetricStoreFailure)
		e.log.Error("logout failed", zap.String("token_id", res.TokenID), zap.Error(res.Err))
		err = internalError(res.Err)
	default:
		err = ErrTokenMalformed
	}
	endSpan(span, err, attribute.String("tokenguard.token_id", res.TokenID))

	if err != nil {
		e.metricInc(MetricLogoutFailure)
		e.record(ctx, auditEventLogoutFailure).token(res.Subject, res.TokenID).fail(err).send()
		return err
	}

	e.metricInc(MetricLogout)
	e.record(ctx, auditEventLogout).token(res.Subject, res.TokenID).
		meta("revoked_until", res.RevokedUntil.UTC().Format(time.RFC3339)).send()
	return nil
}

/*
====================================
VALIDATE
====================================
*/

// Validate verifies an access token and rejects revoked token IDs. A
// blacklist failure rejects the token with ErrInternal.
func (e *Engine) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	ctx, span := e.startSpan(ctx, "tokenguard.Validate")
	res := e.flow.Validate(ctx, token)
	err := e.validateError(ctx, res)
	tokenID := ""
	if res.Claims != nil {
		tokenID = res.Claims.TokenID()
	}
	endSpan(span, err, attribute.String("tokenguard.token_id", tokenID))

	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricValidateSuccess)
	return &Identity{
		Subject:   res.Claims.Subject,
		Roles:     append([]string(nil), res.Claims.Roles...),
		TokenID:   res.Claims.TokenID(),
		ExpiresAt: res.Claims.Expiry(),
	}, nil
}

func (e *Engine) validateError(ctx context.Context, res flows.ValidateResult) error {
	var err error
	switch res.Failure {
	case flows.ValidateFailureNone:
		return nil
	case flows.ValidateFailureNotReady:
		return ErrEngineNotReady
	case flows.ValidateFailureMissing:
		err = ErrMissingToken
	case flows.ValidateFailureBadSignature:
		err = ErrTokenBadSignature
	case flows.ValidateFailureExpired:
		err = ErrTokenExpired
	case flows.ValidateFailureRevoked:
		e.metricInc(MetricValidateRevoked)
		err = ErrTokenRevoked
		e.record(ctx, auditEventTokenRejected).token(res.Claims.Subject, res.Claims.TokenID()).fail(err).send()
	case flows.ValidateFailureStore:
		e.metricInc(MetricStoreFailure)
		e.log.Error("blacklist check failed", zap.Error(res.Err))
		err = internalError(res.Err)
	default:
		err = ErrTokenMalformed
	}
	e.metricInc(MetricValidateFailure)
	return err
}

/*
====================================
MAINTENANCE
====================================
*/

// PurgeExpired removes expired blacklist entries and bindings now and
// returns how many were removed. The sweeper calls the same path.
func (e *Engine) PurgeExpired(ctx context.Context) (int, error) {
	if !e.ready() || e.sweeper == nil {
		return 0, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "tokenguard.PurgeExpired")
	n, err := e.sweeper.RunOnce(ctx)
	if err != nil {
		err = internalError(err)
	}
	endSpan(span, err, attribute.Int("tokenguard.purged", n))
	return n, err
}

func (e *Engine) onPurge(target string, removed int, err error) {
	if err != nil {
		e.metricInc(MetricStoreFailure)
	} else {
		e.metrics.Add(MetricPurgedEntries, uint64(removed))
	}
	e.record(context.Background(), auditEventPurge).fail(err).
		meta("target", target).meta("removed", strconv.Itoa(removed)).send()
}

// Ping checks Redis, when configured, and the user provider when it
// implements Ping(context.Context) error.
func (e *Engine) Ping(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if e.redis != nil {
		if err := e.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: redis: %v", ErrInternal, err)
		}
	}
	if p, ok := e.userProvider.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%w: user provider: %v", ErrInternal, err)
		}
	}
	return nil
}

// HashPassword hashes password with the configured algorithm, for seeding
// user records.
func (e *Engine) HashPassword(password string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(password)
}

func internalError(err error) error {
	if err == nil {
		return ErrInternal
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return e.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
}

func endSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
