package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_http_requests_total",
		Help: "HTTP requests served, by route and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "safety_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_cache_lookups_total",
		Help: "Cache lookups by source and outcome (hit, miss, stale, fallback).",
	}, []string{"source", "outcome"})

	upstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_upstream_fetches_total",
		Help: "Upstream adapter fetches by source and result.",
	}, []string{"source", "result"})

	safetyScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "safety_score",
		Help:    "Distribution of computed safety scores.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})

	circuitOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "safety_upstream_circuit_open",
		Help: "1 while the circuit breaker of an upstream is open.",
	}, []string{"source"})

	warmupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_cache_warmup_runs_total",
		Help: "Scheduled cache warm-up runs by result.",
	}, []string{"result"})
)

func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func RecordCacheLookup(source, outcome string) {
	cacheLookups.WithLabelValues(source, outcome).Inc()
}

func RecordUpstreamFetch(source, result string) {
	upstreamFetches.WithLabelValues(source, result).Inc()
}

func ObserveSafetyScore(score int) {
	safetyScores.Observe(float64(score))
}

func SetCircuitOpen(source string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	circuitOpen.WithLabelValues(source).Set(v)
}

func RecordWarmup(result string) {
	warmupRuns.WithLabelValues(result).Inc()
}
