package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request latency (seconds)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// MQ consume latency (milliseconds)
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// AI suggestion call latency (milliseconds)
	SuggestionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "suggestion_latency_ms",
			Help:    "AI task suggestion latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"outcome"}, // outcome: ai, fallback
	)

	// Suggestion outcome counter
	SuggestionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestion_count",
			Help: "Total number of suggestion requests by outcome",
		},
		[]string{"outcome"}, // outcome: ai, fallback
	)

	// Per-call latency against the suggestion backend (milliseconds)
	SuggestionBackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "suggestion_backend_call_latency_ms",
			Help:    "Latency of individual suggestion backend calls in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"status"}, // status: success, error, 5xx, or an HTTP status code
	)

	// Published event counter
	EventPublishedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_published_count",
			Help: "Total number of events published to MQ",
		},
		[]string{"routing_key", "status"}, // status: success, failed
	)

	// Project cache lookups
	CacheLookupCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookup_count",
			Help: "Total number of cache lookups",
		},
		[]string{"cache", "result"}, // result: hit, miss, error
	)

	// Slow query counter
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slow_query_count",
			Help: "Total number of slow database queries",
		},
		[]string{"query"},
	)
)

// RecordHTTPRequestDuration records HTTP request latency.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMQConsumeLatency records MQ consumption latency.
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordSuggestionLatency records AI suggestion latency.
func RecordSuggestionLatency(outcome string, duration time.Duration) {
	SuggestionLatency.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

// IncrementSuggestion increments the suggestion outcome counter.
func IncrementSuggestion(outcome string) {
	SuggestionCount.WithLabelValues(outcome).Inc()
}

// RecordSuggestionBackendCall records the latency of one backend call.
func RecordSuggestionBackendCall(status string, duration time.Duration) {
	SuggestionBackendLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// IncrementEventPublished increments the published event counter.
func IncrementEventPublished(routingKey, status string) {
	EventPublishedCount.WithLabelValues(routingKey, status).Inc()
}

// IncrementCacheLookup increments the cache lookup counter.
func IncrementCacheLookup(cache, result string) {
	CacheLookupCount.WithLabelValues(cache, result).Inc()
}

// IncrementSlowQuery increments the slow query counter.
func IncrementSlowQuery(query string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(query).Inc()
}
