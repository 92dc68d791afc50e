package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vistagram_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records document store latency by operation and collection.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vistagram_db_query_duration_seconds",
		Help:    "Document store query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// DatabaseErrors counts failed store calls.
	DatabaseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vistagram_db_errors_total",
		Help: "Total number of failed document store calls",
	}, []string{"operation", "collection"})

	// CacheOperations counts cache lookups by result (hit, miss, error).
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vistagram_cache_operations_total",
		Help: "Cache operations by kind and result",
	}, []string{"op", "result"})

	// FeedRequests counts composed feeds by the policy that served them.
	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vistagram_feed_requests_total",
		Help: "Feed compositions by policy",
	}, []string{"policy"})

	// PostInteractions counts like/unlike/share/comment mutations.
	PostInteractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vistagram_post_interactions_total",
		Help: "Post interaction mutations by kind",
	}, []string{"kind"})

	// FollowToggles counts follow and unfollow operations.
	FollowToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vistagram_follow_toggles_total",
		Help: "Follow graph mutations by action",
	}, []string{"action"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, collection string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}

// RecordDBError increments the store error counter.
func RecordDBError(operation, collection string) {
	DatabaseErrors.WithLabelValues(operation, collection).Inc()
}

// RecordCache increments the cache counter.
func RecordCache(op, result string) {
	CacheOperations.WithLabelValues(op, result).Inc()
}
