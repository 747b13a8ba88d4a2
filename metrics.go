package tokenguard

import (
	"sort"
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRateLimited
	// MetricRefreshRevoked counts refresh attempts with a blacklisted token ID.
	MetricRefreshRevoked
	// MetricRefreshIPMismatch counts refresh attempts from a different IP.
	MetricRefreshIPMismatch
	MetricLogout
	MetricLogoutFailure
	MetricValidateSuccess
	MetricValidateFailure
	// MetricValidateRevoked counts access tokens rejected by the blacklist.
	MetricValidateRevoked
	// MetricStoreFailure counts blacklist, binding and user-store errors.
	MetricStoreFailure
	// MetricPurgedEntries counts blacklist and binding entries removed by purges.
	MetricPurgedEntries
	MetricValidateLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the latency buckets.
// Anything slower lands in one extra overflow bucket.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBucketCount = len(latencyBounds) + 1

// counterSlot keeps each counter on its own cache line.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics is a fixed set of lock-free counters plus the validate latency
// histogram. The zero value and nil are both disabled.
type Metrics struct {
	enabled bool
	slots   [metricIDCount]counterSlot
	// latency is nil unless latency histograms are on.
	latency *[latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	m := &Metrics{enabled: cfg.Enabled}
	if cfg.Enabled && cfg.EnableLatencyHistograms {
		m.latency = new([latencyBucketCount]atomic.Uint64)
	}
	return m
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latency != nil
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if !m.Enabled() || id >= metricIDCount || n == 0 {
		return
	}
	m.slots[id].n.Add(n)
}

// Observe records d in the histogram of id. Only MetricValidateLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if id != MetricValidateLatency || !m.LatencyEnabled() {
		return
	}
	m.latency[latencyBucket(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.slots[id].n.Load()
}

// Snapshot copies every counter. Histograms are included only when
// latency recording is on.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}
	for i := range m.slots {
		snap.Counters[MetricID(i)] = m.slots[i].n.Load()
	}
	if m.latency != nil {
		counts := make([]uint64, latencyBucketCount)
		for i := range m.latency {
			counts[i] = m.latency[i].Load()
		}
		snap.Histograms[MetricValidateLatency] = counts
	}
	return snap
}

// latencyBucket returns the first bucket whose bound is >= d.
func latencyBucket(d time.Duration) int {
	return sort.Search(len(latencyBounds), func(i int) bool {
		return d <= latencyBounds[i]
	})
}
