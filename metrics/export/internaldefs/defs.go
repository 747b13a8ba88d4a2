package internaldefs

import (
	"github.com/MrEthical07/tokenguard"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   tokenguard.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   tokenguard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: tokenguard.MetricLoginSuccess, Name: "tokenguard_login_success_total", Help: "Successful logins."},
	{ID: tokenguard.MetricLoginFailure, Name: "tokenguard_login_failure_total", Help: "Failed logins."},
	{ID: tokenguard.MetricLoginRateLimited, Name: "tokenguard_login_rate_limited_total", Help: "Logins rejected by the throttle."},
	{ID: tokenguard.MetricRefreshSuccess, Name: "tokenguard_refresh_success_total", Help: "Successful token refreshes."},
	{ID: tokenguard.MetricRefreshFailure, Name: "tokenguard_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: tokenguard.MetricRefreshRateLimited, Name: "tokenguard_refresh_rate_limited_total", Help: "Refreshes rejected by the throttle."},
	{ID: tokenguard.MetricRefreshRevoked, Name: "tokenguard_refresh_revoked_total", Help: "Refreshes presenting a revoked token ID."},
	{ID: tokenguard.MetricRefreshIPMismatch, Name: "tokenguard_refresh_ip_mismatch_total", Help: "Refreshes from an IP other than the bound one."},
	{ID: tokenguard.MetricLogout, Name: "tokenguard_logout_total", Help: "Successful logouts."},
	{ID: tokenguard.MetricLogoutFailure, Name: "tokenguard_logout_failure_total", Help: "Failed logouts."},
	{ID: tokenguard.MetricValidateSuccess, Name: "tokenguard_validate_success_total", Help: "Accepted access tokens."},
	{ID: tokenguard.MetricValidateFailure, Name: "tokenguard_validate_failure_total", Help: "Rejected access tokens."},
	{ID: tokenguard.MetricValidateRevoked, Name: "tokenguard_validate_revoked_total", Help: "Access tokens rejected by the blacklist."},
	{ID: tokenguard.MetricStoreFailure, Name: "tokenguard_store_failure_total", Help: "Blacklist, binding and user store errors."},
	{ID: tokenguard.MetricPurgedEntries, Name: "tokenguard_purged_entries_total", Help: "Expired blacklist entries and bindings removed by purges."},
}

var HistogramDefs = []HistogramDef{
	{ID: tokenguard.MetricValidateLatency, Name: "tokenguard_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bounds in seconds of the first seven
// buckets; the eighth is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundLabels renders each bound, +Inf included, the way the
// Prometheus "le" label does.
var HistogramBoundLabels = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

const AuditDroppedName = "tokenguard_audit_dropped_total"

const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// Cumulative turns per-bucket counts into running totals, one per entry of
// HistogramBoundLabels. Missing buckets count as empty; extra ones fold into
// the last.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(HistogramBoundLabels))
	var running uint64
	for i, n := range raw {
		running += n
		if i < len(out) {
			out[i] = running
		} else {
			out[len(out)-1] = running
		}
	}
	for i := len(raw); i < len(out); i++ {
		out[i] = running
	}
	return out
}
