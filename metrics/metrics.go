// Package metrics exposes cache counters to Prometheus. The collector
// reads a Stats snapshot on every scrape, so it adds no bookkeeping to
// the cache's hot paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/strata"
)

// Source is anything that can snapshot cache counters. Every
// strata.Cache satisfies it.
type Source interface {
	Stats() strata.Stats
}

// Collector implements prometheus.Collector over a Source. Register one
// per cache; the cache label tells them apart.
type Collector struct {
	src Source

	hits      *prometheus.Desc
	misses    *prometheus.Desc
	hitRate   *prometheus.Desc
	memItems  *prometheus.Desc
	memBytes  *prometheus.Desc
	diskItems *prometheus.Desc
	diskBytes *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(name string, src Source) *Collector {
	labels := prometheus.Labels{"cache": name}
	return &Collector{
		src: src,
		hits: prometheus.NewDesc(
			"strata_hits_total", "Cache hits since start or the last reset.", nil, labels),
		misses: prometheus.NewDesc(
			"strata_misses_total", "Cache misses since start or the last reset.", nil, labels),
		hitRate: prometheus.NewDesc(
			"strata_hit_rate", "Hits divided by total reads.", nil, labels),
		memItems: prometheus.NewDesc(
			"strata_memory_items", "Entries held by the memory tier.", nil, labels),
		memBytes: prometheus.NewDesc(
			"strata_memory_bytes", "Bytes held by the memory tier.", nil, labels),
		diskItems: prometheus.NewDesc(
			"strata_disk_items", "Entries indexed by the file tier.", nil, labels),
		diskBytes: prometheus.NewDesc(
			"strata_disk_bytes", "On-disk bytes indexed by the file tier.", nil, labels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.hitRate
	ch <- c.memItems
	ch <- c.memBytes
	ch <- c.diskItems
	ch <- c.diskBytes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, s.HitRate)
	ch <- prometheus.MustNewConstMetric(c.memItems, prometheus.GaugeValue, float64(s.MemoryItems))
	ch <- prometheus.MustNewConstMetric(c.memBytes, prometheus.GaugeValue, float64(s.MemoryBytes))
	ch <- prometheus.MustNewConstMetric(c.diskItems, prometheus.GaugeValue, float64(s.DiskItems))
	ch <- prometheus.MustNewConstMetric(c.diskBytes, prometheus.GaugeValue, float64(s.DiskBytes))
}
