// Package observability holds the Prometheus collector and OpenTelemetry
// tracing setup for the commerce backend.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every Prometheus metric the application emits. It runs
// on a private registry so tests can build collectors freely without
// duplicate registration panics.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheEvictions     *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec

	batchQueries      *prometheus.CounterVec
	batchDuration     prometheus.Histogram
	batchTransactions *prometheus.CounterVec
}

// NewCollector creates a collector on its own registry.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Cache hits by instance",
			},
			[]string{"instance"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Cache misses by instance",
			},
			[]string{"instance"},
		),
		cacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Entries evicted to make room for new writes",
			},
			[]string{"instance"},
		),
		cacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidations_total",
				Help:      "Entries removed by explicit invalidation",
			},
			[]string{"instance"},
		),
		batchQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_queries_total",
				Help:      "Queries executed through the batcher",
			},
			[]string{"status"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Wall time of batch executions",
				Buckets:   prometheus.DefBuckets,
			},
		),
		batchTransactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_transactions_total",
				Help:      "Transactional batch executions by outcome",
			},
			[]string{"outcome"},
		),
	}

	c.registry.MustRegister(
		c.httpRequests, c.httpDuration,
		c.cacheHits, c.cacheMisses, c.cacheEvictions, c.cacheInvalidations,
		c.batchQueries, c.batchDuration, c.batchTransactions,
	)
	return c
}

// Handler serves the collector's registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// HTTPRequest records one completed HTTP request.
func (c *Collector) HTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// CacheHit implements the cache metrics sink.
func (c *Collector) CacheHit(instance string) {
	c.cacheHits.WithLabelValues(instance).Inc()
}

// CacheMiss implements the cache metrics sink.
func (c *Collector) CacheMiss(instance string) {
	c.cacheMisses.WithLabelValues(instance).Inc()
}

// CacheEviction implements the cache metrics sink.
func (c *Collector) CacheEviction(instance string, count int) {
	c.cacheEvictions.WithLabelValues(instance).Add(float64(count))
}

// CacheInvalidation implements the cache metrics sink.
func (c *Collector) CacheInvalidation(instance string, count int) {
	c.cacheInvalidations.WithLabelValues(instance).Add(float64(count))
}

// BatchExecuted implements the batcher metrics sink.
func (c *Collector) BatchExecuted(queries int, failed int, duration time.Duration) {
	c.batchQueries.WithLabelValues("ok").Add(float64(queries - failed))
	if failed > 0 {
		c.batchQueries.WithLabelValues("error").Add(float64(failed))
	}
	c.batchDuration.Observe(duration.Seconds())
}

// BatchTransaction implements the batcher metrics sink.
func (c *Collector) BatchTransaction(queries int, committed bool, duration time.Duration) {
	outcome := "committed"
	if !committed {
		outcome = "rolled_back"
	}
	c.batchTransactions.WithLabelValues(outcome).Inc()
	c.batchDuration.Observe(duration.Seconds())
}
