package tokenguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "tokenguard-test-secret-0123456789abcdef"
	testPassword = "correct-password-123"
)

type mapUserProvider struct {
	mu    sync.RWMutex
	users map[string]UserRecord
	err   error
}

func (p *mapUserProvider) FindUserByUsername(_ context.Context, username string) (UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.err != nil {
		return UserRecord{}, p.err
	}
	u, ok := p.users[username]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (p *mapUserProvider) set(u UserRecord) {
	p.mu.Lock()
	p.users[u.Username] = u
	p.mu.Unlock()
}

func (p *mapUserProvider) remove(username string) {
	p.mu.Lock()
	delete(p.users, username)
	p.mu.Unlock()
}

func (p *mapUserProvider) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func newTestUserProvider(t testing.TB) *mapUserProvider {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return &mapUserProvider{
		users: map[string]UserRecord{
			"alice": {Username: "alice", PasswordHash: string(hash), Roles: []string{"USER"}},
			"bob":   {Username: "bob", PasswordHash: string(hash), Roles: []string{"USER", "ADMIN"}},
		},
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Store.DisableSweeper = true
	return cfg
}

func newTestEngine(t testing.TB, cfg Config, up UserProvider, clock *testClock) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithUserProvider(up).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func ipContext(ip string) context.Context {
	return WithClientIP(context.Background(), ip)
}

func mustInspect(t *testing.T, e *Engine, token string) *jwt.Claims {
	t.Helper()

	claims, err := e.codec.Inspect(token)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	return claims
}

func TestLoginIssuesCorrelatedPairBoundToClientIP(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), clock)

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	access := mustInspect(t, engine, pair.AccessToken)
	refresh := mustInspect(t, engine, pair.RefreshToken)
	if access.TokenID() == "" || access.TokenID() != refresh.TokenID() {
		t.Fatalf("expected shared token id, got %q and %q", access.TokenID(), refresh.TokenID())
	}
	if access.Kind != jwt.KindAccess || refresh.Kind != jwt.KindRefresh {
		t.Fatalf("unexpected kinds %q / %q", access.Kind, refresh.Kind)
	}
	if got := access.Expiry().Sub(clock.Now()); got != 15*time.Minute {
		t.Fatalf("expected 15m access lifetime, got %v", got)
	}
	if got := refresh.Expiry().Sub(clock.Now()); got != 24*time.Hour {
		t.Fatalf("expected 24h refresh lifetime, got %v", got)
	}

	binding, err := engine.bindings.Lookup(context.Background(), access.TokenID())
	if err != nil {
		t.Fatalf("binding lookup failed: %v", err)
	}
	if binding.IP != "1.2.3.4" {
		t.Fatalf("expected binding to 1.2.3.4, got %q", binding.IP)
	}
	if !binding.ExpiresAt.Equal(clock.Now().Add(24 * time.Hour)) {
		t.Fatalf("unexpected binding expiry %v", binding.ExpiresAt)
	}
}

func TestLoginInvalidCredentialsAreIndistinguishable(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), newTestClock())

	_, errUnknown := engine.Login(ipContext("1.2.3.4"), "mallory", testPassword)
	_, errWrong := engine.Login(ipContext("1.2.3.4"), "alice", "wrong-password")
	_, errEmpty := engine.Login(ipContext("1.2.3.4"), "alice", "")

	for _, err := range []error{errUnknown, errWrong, errEmpty} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("unknown user and wrong password must look the same: %q vs %q", errUnknown, errWrong)
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginFailure]; got != 3 {
		t.Fatalf("expected 3 login failures, got %d", got)
	}
}

func TestRefreshRequiresOriginalClientIP(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), newTestClock())

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	tokenID := mustInspect(t, engine, pair.AccessToken).TokenID()

	rotated, err := engine.Refresh(ipContext("1.2.3.4"), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh from original IP failed: %v", err)
	}
	if got := mustInspect(t, engine, rotated.AccessToken).TokenID(); got != tokenID {
		t.Fatalf("expected rotated access token to keep id %q, got %q", tokenID, got)
	}
	if got := mustInspect(t, engine, rotated.RefreshToken).TokenID(); got != tokenID {
		t.Fatalf("expected rotated refresh token to keep id %q, got %q", tokenID, got)
	}

	if _, err := engine.Refresh(ipContext("9.9.9.9"), rotated.RefreshToken); !errors.Is(err, ErrIPMismatch) {
		t.Fatalf("expected ErrIPMismatch, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricRefreshIPMismatch]; got != 1 {
		t.Fatalf("expected 1 ip mismatch, got %d", got)
	}
}

func TestRefreshExtendsBinding(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), clock)

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	clock.Advance(20 * time.Hour)

	rotated, err := engine.Refresh(ipContext("1.2.3.4"), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	clock.Advance(10 * time.Hour)

	// The first refresh token is past its exp; the rotated one is not.
	if _, err := engine.Refresh(ipContext("1.2.3.4"), pair.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for original refresh token, got %v", err)
	}
	if _, err := engine.Refresh(ipContext("1.2.3.4"), rotated.RefreshToken); err != nil {
		t.Fatalf("rotated refresh token should still be valid: %v", err)
	}
}

func TestRefreshReloadsRoles(t *testing.T) {
	up := newTestUserProvider(t)
	engine := newTestEngine(t, testConfig(), up, newTestClock())

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	alice, _ := up.FindUserByUsername(context.Background(), "alice")
	alice.Roles = []string{"USER", "ADMIN"}
	up.set(alice)

	rotated, err := engine.Refresh(ipContext("1.2.3.4"), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	id, err := engine.Validate(context.Background(), rotated.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !id.HasRole("ROLE_ADMIN") {
		t.Fatalf("expected refreshed roles to include ADMIN, got %v", id.Roles)
	}
}

func TestRefreshFailures(t *testing.T) {
	up := newTestUserProvider(t)
	engine := newTestEngine(t, testConfig(), up, newTestClock())

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := engine.Refresh(ipContext("1.2.3.4"), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := engine.Refresh(ipContext("1.2.3.4"), "not-a-token"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for garbage, got %v", err)
	}
	if _, err := engine.Refresh(ipContext("1.2.3.4"), pair.AccessToken); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for access token, got %v", err)
	}

	up.remove("alice")
	if _, err := engine.Refresh(ipContext("1.2.3.4"), pair.RefreshToken); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRefreshWithoutBindingFails(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), clock)

	// A token signed with the right key whose id was never bound.
	forged, err := engine.codec.Issue("alice", []string{"USER"}, "00000000-0000-4000-8000-000000000001", jwt.KindRefresh, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := engine.Refresh(ipContext("1.2.3.4"), forged); !errors.Is(err, ErrInvalidBinding) {
		t.Fatalf("expected ErrInvalidBinding, got %v", err)
	}
}

func TestLogoutRevokesAccessAndRefresh(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), newTestClock())

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.Validate(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("validate before logout failed: %v", err)
	}

	if err := engine.Logout(ipContext("1.2.3.4"), pair.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if _, err := engine.Validate(context.Background(), pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked from Validate, got %v", err)
	}
	if _, err := engine.Refresh(ipContext("1.2.3.4"), pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked from Refresh, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLogout] != 1 || snap.Counters[MetricValidateRevoked] != 1 || snap.Counters[MetricRefreshRevoked] != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
}

func TestLogoutRetentionCoversRefreshLifetime(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), clock)

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Expired access tokens can still be logged out.
	clock.Advance(16 * time.Minute)
	if _, err := engine.Validate(context.Background(), pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if err := engine.Logout(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("logout of expired token failed: %v", err)
	}

	clock.Advance(23 * time.Hour)
	if _, err := engine.Refresh(ipContext("1.2.3.4"), pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected refresh token to stay revoked until its expiry, got %v", err)
	}
}

func TestLogoutRejectsUnsignedInput(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), newTestClock())

	other, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("another-secret-another-secret-0123456789"),
	})
	if err != nil {
		t.Fatalf("codec failed: %v", err)
	}
	forged, err := other.Issue("alice", nil, "00000000-0000-4000-8000-000000000002", jwt.KindAccess, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := engine.Logout(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if err := engine.Logout(context.Background(), forged); !errors.Is(err, ErrTokenBadSignature) {
		t.Fatalf("expected ErrTokenBadSignature, got %v", err)
	}
	if err := engine.Logout(context.Background(), "a.b.c"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}

	revoked, err := engine.blacklist.IsRevoked(context.Background(), "00000000-0000-4000-8000-000000000002")
	if err != nil || revoked {
		t.Fatalf("forged logout must not revoke anything: revoked=%v err=%v", revoked, err)
	}
}

func TestValidateReturnsIdentity(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), clock)

	pair, err := engine.Login(ipContext("1.2.3.4"), "bob", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	id, err := engine.Validate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if id.Subject != "bob" || !id.HasRole("admin") || !id.HasRole("USER") {
		t.Fatalf("unexpected identity %+v", id)
	}
	if !id.ExpiresAt.Equal(clock.Now().Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", id.ExpiresAt)
	}

	if _, err := engine.Validate(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("refresh token must not validate as access token, got %v", err)
	}
	if _, err := engine.Validate(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestUserProviderFailureIsInternal(t *testing.T) {
	up := newTestUserProvider(t)
	engine := newTestEngine(t, testConfig(), up, newTestClock())

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	up.fail(errors.New("connection refused"))
	if _, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal from login, got %v", err)
	}
	if _, err := engine.Refresh(ipContext("1.2.3.4"), pair.RefreshToken); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal from refresh, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricStoreFailure]; got != 2 {
		t.Fatalf("expected 2 store failures, got %d", got)
	}
}

func TestPurgeExpiredRemovesOnlyExpiredEntries(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), clock)

	old, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := engine.Logout(context.Background(), old.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	clock.Advance(12 * time.Hour)
	if _, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword); err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	clock.Advance(12 * time.Hour)
	n, err := engine.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	// The first pair's blacklist entry and binding expire exactly now.
	if n != 2 {
		t.Fatalf("expected 2 purged entries, got %d", n)
	}
	if got := engine.MetricsSnapshot().Counters[MetricPurgedEntries]; got != 2 {
		t.Fatalf("expected purged counter 2, got %d", got)
	}

	n, err = engine.PurgeExpired(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected empty second purge, got n=%d err=%v", n, err)
	}
}

func TestConcurrentLogoutValidatePurge(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), newTestClock())

	const n = 16
	pairs := make([]TokenPair, n)
	for i := range pairs {
		pair, err := engine.Login(ipContext("10.0.0.1"), "alice", testPassword)
		if err != nil {
			t.Fatalf("login %d failed: %v", i, err)
		}
		pairs[i] = pair
	}

	var wg sync.WaitGroup
	for i := range pairs {
		wg.Add(3)
		go func(p TokenPair) {
			defer wg.Done()
			if err := engine.Logout(context.Background(), p.AccessToken); err != nil {
				t.Errorf("logout failed: %v", err)
			}
		}(pairs[i])
		go func(p TokenPair) {
			defer wg.Done()
			_, _ = engine.Validate(context.Background(), p.AccessToken)
		}(pairs[i])
		go func() {
			defer wg.Done()
			_, _ = engine.PurgeExpired(context.Background())
		}()
	}
	wg.Wait()

	for i, p := range pairs {
		if _, err := engine.Validate(context.Background(), p.AccessToken); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("pair %d: expected ErrTokenRevoked after concurrent logout, got %v", i, err)
		}
	}
}

func TestRedisBackendLifecycle(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.Store.Backend = StoreRedis

	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithUserProvider(newTestUserProvider(t)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if engine.StoreBackend() != StoreRedis {
		t.Fatalf("expected redis backend, got %q", engine.StoreBackend())
	}
	if err := engine.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	tokenID := mustInspect(t, engine, pair.AccessToken).TokenID()
	if got := mr.HGet("tg:bind:"+tokenID, "ip"); got != "1.2.3.4" {
		t.Fatalf("expected redis binding ip 1.2.3.4, got %q", got)
	}

	if _, err := engine.Refresh(ipContext("9.9.9.9"), pair.RefreshToken); !errors.Is(err, ErrIPMismatch) {
		t.Fatalf("expected ErrIPMismatch, got %v", err)
	}
	if err := engine.Logout(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := engine.Validate(context.Background(), pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	mr.Close()
	if _, err := engine.Validate(context.Background(), pair.AccessToken); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected fail-closed ErrInternal with redis down, got %v", err)
	}
	if err := engine.Ping(context.Background()); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ping failure, got %v", err)
	}
}

func TestLoginThrottle(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.Store.Backend = StoreMemory
	cfg.Security.EnableLoginThrottle = true
	cfg.Security.MaxLoginAttempts = 2

	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithUserProvider(newTestUserProvider(t)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ipContext("1.2.3.4"), "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if _, err := engine.Login(ipContext("1.2.3.4"), "bob", testPassword); err != nil {
		t.Fatalf("other users must not be throttled: %v", err)
	}
}

func TestRefreshThrottle(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.Security.EnableRefreshThrottle = true
	cfg.Security.MaxRefreshAttempts = 1

	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithUserProvider(newTestUserProvider(t)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.Refresh(ipContext("1.2.3.4"), pair.RefreshToken); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if _, err := engine.Refresh(ipContext("1.2.3.4"), pair.RefreshToken); !errors.Is(err, ErrRefreshRateLimited) {
		t.Fatalf("expected ErrRefreshRateLimited, got %v", err)
	}
}

func TestBuildRejectsInvalidWiring(t *testing.T) {
	up := newTestUserProvider(t)

	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without user provider")
	}

	cfg := testConfig()
	cfg.Store.Backend = StoreRedis
	if _, err := New().WithConfig(cfg).WithUserProvider(up).Build(); err == nil {
		t.Fatal("expected error for redis backend without client")
	}

	cfg = testConfig()
	cfg.Security.EnableLoginThrottle = true
	if _, err := New().WithConfig(cfg).WithUserProvider(up).Build(); err == nil {
		t.Fatal("expected error for throttle without redis")
	}

	cfg = testConfig()
	cfg.JWT.PrivateKey = []byte("short")
	if _, err := New().WithConfig(cfg).WithUserProvider(up).Build(); err == nil {
		t.Fatal("expected error for short hs256 secret")
	}

	b := New().WithConfig(testConfig()).WithUserProvider(up)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected builder reuse to fail")
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var engine *Engine

	if _, err := engine.Login(context.Background(), "alice", testPassword); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.Validate(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := engine.Logout(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	engine.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	cfg := testConfig()
	cfg.Store.DisableSweeper = false

	engine, err := New().WithConfig(cfg).WithUserProvider(newTestUserProvider(t)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	engine.Close()
	engine.Close()
}
