// Package rate implements the Redis-backed login and refresh throttles.
//
// # Window semantics
//
// Fixed-window counters: INCR + EXPIRE on the first hit. Key layout under the
// configured prefix:
//   - <prefix>:rl:login:u:<username>  failed logins per username
//   - <prefix>:rl:login:ip:<ip>       failed logins per client IP
//   - <prefix>:rl:refresh:<tokenID>   refreshes per token
//
// Login counters only grow on failures and are cleared on success. Refresh
// counters grow on every refresh.
//
// # What this package must NOT do
//
//   - Decide how a throttle maps to HTTP. Callers translate ErrRateLimited.
//   - Be imported outside the tokenguard module.
package rate
