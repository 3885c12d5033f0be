package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsCreated counts posts written, split by top-level vs reply.
	PostsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_posts_created_total",
		Help: "Total number of posts created",
	}, []string{"kind"})

	// PostDeletes counts delete requests by outcome.
	PostDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_post_deletes_total",
		Help: "Total number of post delete requests by outcome",
	}, []string{"outcome"})

	// LikeToggles counts like toggles by resulting state.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_like_toggles_total",
		Help: "Total number of like toggles by resulting state",
	}, []string{"state"})

	// LoginAttempts counts logins by outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records repository latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "microblog_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
