// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow (RunLogin, RunRefresh, RunLogout, RunValidate) takes a typed
// dependency struct and returns a result carrying a failure kind instead of
// a host error. The root package maps kinds to its sentinel errors, metrics
// and audit events.
//
// # Architecture boundaries
//
// Flows coordinate the token codec, the blacklist, the binding store, the
// user lookup and the throttles. They own none of them.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import tokenguard (import cycle).
//   - Log. Warnings go through the injected Warn func.
package flows
