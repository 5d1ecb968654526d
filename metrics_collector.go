package statsig

import "github.com/prometheus/client_golang/prometheus"

// CacheMetricsSource is implemented by [*Client].
type CacheMetricsSource interface {
	CacheMetrics() CacheMetricsSummary
}

// CacheCollector exports the evaluation cache counters of a client as
// Prometheus metrics. Values are read from the source on every scrape.
//
//	prometheus.MustRegister(statsig.NewCacheCollector(client, nil))
type CacheCollector struct {
	source    CacheMetricsSource
	hits      *prometheus.Desc
	misses    *prometheus.Desc
	inserts   *prometheus.Desc
	evictions *prometheus.Desc
	hitRatio  *prometheus.Desc
}

// NewCacheCollector returns a collector for source. constLabels are attached to every metric
// and may be nil.
func NewCacheCollector(source CacheMetricsSource, constLabels prometheus.Labels) *CacheCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("statsig", "cache", name), help, nil, constLabels)
	}
	return &CacheCollector{
		source:    source,
		hits:      desc("hits_total", "Evaluation cache lookups answered from cache."),
		misses:    desc("misses_total", "Evaluation cache lookups that were absent or expired."),
		inserts:   desc("inserts_total", "Evaluations written to the cache."),
		evictions: desc("evictions_total", "Evaluations evicted to respect the cache capacity."),
		hitRatio:  desc("hit_ratio", "Percentage of lookups answered from cache."),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.inserts
	ch <- c.evictions
	ch <- c.hitRatio
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	summary := c.source.CacheMetrics()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(summary.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(summary.Misses))
	ch <- prometheus.MustNewConstMetric(c.inserts, prometheus.CounterValue, float64(summary.Inserts))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(summary.Evictions))
	ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, summary.HitRatio)
}
