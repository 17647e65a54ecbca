package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/chapter-points-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, awards,
// reconciliation and caching. A nil *MetricsService is a valid no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	awardsTotal     *prometheus.CounterVec
	awardErrors     *prometheus.CounterVec
	awardDuration   prometheus.Histogram
	driftPairs      prometheus.Gauge
	repairedPairs   prometheus.Counter
	cacheLookups    *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
	dbQueryDuration *prometheus.HistogramVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		awardsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_awards_total",
			Help: "Award attempts by point key and outcome",
		}, []string{"point_key", "outcome"}),
		awardErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_award_errors_total",
			Help: "Award storage failures by stage",
		}, []string{"stage"}),
		awardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "points_award_duration_seconds",
			Help:    "Latency of award calls",
			Buckets: prometheus.DefBuckets,
		}),
		driftPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "points_drift_pairs",
			Help: "Aggregate pairs disagreeing with the ledger at the last audit",
		}),
		repairedPairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "points_repaired_pairs_total",
			Help: "Aggregate pairs overwritten from ledger totals",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.awardsTotal, m.awardErrors, m.awardDuration,
		m.driftPairs, m.repairedPairs, m.cacheLookups, m.cacheLatency, m.dbQueryDuration, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordAward counts one award outcome.
func (m *MetricsService) RecordAward(pointKey string, outcome models.AwardOutcome, duration time.Duration) {
	if m == nil {
		return
	}
	m.awardsTotal.WithLabelValues(pointKey, string(outcome)).Inc()
	m.awardDuration.Observe(duration.Seconds())
}

// RecordAwardError counts a storage failure at the given stage (catalog, ledger, aggregate).
func (m *MetricsService) RecordAwardError(stage string) {
	if m == nil {
		return
	}
	m.awardErrors.WithLabelValues(stage).Inc()
}

// SetDriftPairs publishes the drift count of the latest audit.
func (m *MetricsService) SetDriftPairs(n int) {
	if m == nil {
		return
	}
	m.driftPairs.Set(float64(n))
}

// AddRepairedPairs counts repaired aggregates.
func (m *MetricsService) AddRepairedPairs(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.repairedPairs.Add(float64(n))
}

// RecordCacheOperation records a cache lookup result.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheLatency.WithLabelValues("get").Observe(duration.Seconds())
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues("set").Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}
