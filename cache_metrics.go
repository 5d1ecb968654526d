package statsig

import (
	"fmt"
	"sync/atomic"
)

// CacheMetrics counts cache activity. It is safe for concurrent use.
type CacheMetrics struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	inserts   atomic.Uint64
	evictions atomic.Uint64
}

// CacheMetricsSummary is a point-in-time snapshot of [CacheMetrics].
type CacheMetricsSummary struct {
	Hits          uint64
	Misses        uint64
	Inserts       uint64
	Evictions     uint64
	TotalRequests uint64
	// HitRatio is hits / (hits + misses) in percent, 0 before the first lookup.
	HitRatio float64
}

func (m *CacheMetrics) recordHit()      { m.hits.Add(1) }
func (m *CacheMetrics) recordMiss()     { m.misses.Add(1) }
func (m *CacheMetrics) recordInsert()   { m.inserts.Add(1) }
func (m *CacheMetrics) recordEviction() { m.evictions.Add(1) }

// Summary returns a snapshot of the counters.
func (m *CacheMetrics) Summary() CacheMetricsSummary {
	summary := CacheMetricsSummary{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Inserts:   m.inserts.Load(),
		Evictions: m.evictions.Load(),
	}
	summary.TotalRequests = summary.Hits + summary.Misses
	if summary.TotalRequests > 0 {
		summary.HitRatio = float64(summary.Hits) / float64(summary.TotalRequests) * 100
	}
	return summary
}

// Reset sets every counter to zero.
func (m *CacheMetrics) Reset() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.inserts.Store(0)
	m.evictions.Store(0)
}

func (s CacheMetricsSummary) String() string {
	return fmt.Sprintf("Cache Metrics: %d hits, %d misses, %.2f%% hit ratio, %d inserts, %d evictions",
		s.Hits, s.Misses, s.HitRatio, s.Inserts, s.Evictions)
}
