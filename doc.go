// Package tokenguard issues, validates, refreshes and revokes JWT access and
// refresh tokens for a web API.
//
// A login produces a correlated pair: an access token and a refresh token
// sharing one token ID (the jti claim). The refresh token is bound to the
// client IP that logged in, and a refresh from any other IP is rejected.
// Logout puts the token ID on a blacklist until the later of the access
// token's expiry and the refresh binding's expiry, which rejects both halves
// of the pair.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. The client IP travels in the context; see [WithClientIP].
//
// # Architecture boundaries
//
// tokenguard is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([TokenPair], [Identity], [MetricsSnapshot]). Flow
// orchestration and rate limiting live under internal/. Blacklist and binding
// stores live in the store package and have memory and Redis backends.
//
// # Storage
//
// Without a Redis client the engine keeps revocation state in process. With
// one (see [Builder.WithRedis]) the state is shared by every instance pointed
// at the same Redis, and the login and refresh throttles become available.
// A background sweeper purges expired entries; [Engine.Close] stops it.
package tokenguard
