// Package metrics holds the Prometheus collectors shared across the binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocket_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pocket_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "route"})

	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocket_remote_requests_total",
		Help: "Remote store calls by operation and outcome",
	}, []string{"op", "status"})

	RemoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pocket_remote_request_duration_seconds",
		Help:    "Remote store call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocket_local_fallbacks_total",
		Help: "Operations served from local storage after a remote failure",
	}, []string{"op"})

	Migrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocket_migrations_total",
		Help: "Migration protocol runs by resulting state",
	}, []string{"state"})

	SyncMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocket_sync_messages_total",
		Help: "Deferred sync messages handled by the worker",
	}, []string{"operation", "result"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pocket_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	})

	SuspiciousRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pocket_suspicious_requests_total",
		Help: "Requests matching a known probe pattern",
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocket_cache_lookups_total",
		Help: "Cache lookups by cache and result (hit, miss, expired)",
	}, []string{"cache", "result"})

	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocket_cache_evictions_total",
		Help: "Entries dropped by capacity, expiry or invalidation",
	}, []string{"cache", "reason"})
)

// Status maps an error to the status label used by the counters.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
