package tetherprom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/danpasecinic/tether"
)

type scopeCollector struct {
	c        *tether.Container
	scopes   *prometheus.Desc
	entries  *prometheus.Desc
	created  *prometheus.Desc
	disposed *prometheus.Desc
	pruned   *prometheus.Desc
}

// Watch returns a collector that reads the scope statistics of c on every
// scrape.
func Watch(c *tether.Container, namespace string) prometheus.Collector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, subsystem, n)
	}
	return &scopeCollector{
		c:        c,
		scopes:   prometheus.NewDesc(name("live_scopes"), "Creators that currently own a scope", nil, nil),
		entries:  prometheus.NewDesc(name("live_scope_entries"), "Dependencies currently held for creators", nil, nil),
		created:  prometheus.NewDesc(name("scope_entries_created_total"), "Dependencies stored in a scope", nil, nil),
		disposed: prometheus.NewDesc(name("scope_entries_disposed_total"), "Dependencies disposed", nil, nil),
		pruned:   prometheus.NewDesc(name("scope_entries_pruned_total"), "Dependencies released by pruning", nil, nil),
	}
}

func (s *scopeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.scopes
	ch <- s.entries
	ch <- s.created
	ch <- s.disposed
	ch <- s.pruned
}

func (s *scopeCollector) Collect(ch chan<- prometheus.Metric) {
	stats := s.c.ScopeStats()
	ch <- prometheus.MustNewConstMetric(s.scopes, prometheus.GaugeValue, float64(stats.Scopes))
	ch <- prometheus.MustNewConstMetric(s.entries, prometheus.GaugeValue, float64(stats.Entries))
	ch <- prometheus.MustNewConstMetric(s.created, prometheus.CounterValue, float64(stats.Created))
	ch <- prometheus.MustNewConstMetric(s.disposed, prometheus.CounterValue, float64(stats.Disposed))
	ch <- prometheus.MustNewConstMetric(s.pruned, prometheus.CounterValue, float64(stats.Pruned))
}
