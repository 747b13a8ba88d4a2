// Package httpapi exposes a tokenguard engine over HTTP: login, refresh,
// logout, role-protected demo routes, health probes and Prometheus metrics.
//
//	POST /api/login                   {"username","password"} -> {"accessToken","refreshToken"}
//	POST /api/refresh-token           {"refreshToken"}        -> {"accessToken","refreshToken"}
//	POST /api/auth/logout             Authorization: Bearer <access>
//	GET  /api/protected-message       USER or ADMIN
//	GET  /api/protected-message-admin ADMIN
//	GET  /healthz, /readyz, /metrics
//
// Error bodies are short plain-text messages; internal causes are logged,
// never returned.
package httpapi
