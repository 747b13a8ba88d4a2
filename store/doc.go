// Package store holds the two pieces of shared revocation state: the
// blacklist of revoked token IDs and the refresh-token IP bindings.
//
// Each has an in-process backend for single-instance deployments and tests,
// and a Redis backend for deployments where several instances must agree on
// revocation. All backends are safe for concurrent use; callers never lock.
//
// [Sweeper] purges expired entries on a fixed schedule so memory stays
// bounded independently of request volume.
package store
