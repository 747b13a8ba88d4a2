// Package middleware adapts tokenguard.Engine validation to net/http.
//
// # Guards
//
//   - [Gate] verifies a bearer token when one is present and stores the
//     resulting identity in the request context. Requests without an
//     Authorization header pass through anonymously.
//   - [RequireRoles] rejects anonymous requests with 401 and requests whose
//     identity holds none of the listed roles with 403.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all token decisions are delegated
// to Engine.Validate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
package middleware
