package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Auth negotiation metrics
	AuthNegotiationsStarted prometheus.Counter
	AuthSuccesses           prometheus.Counter
	AuthFailures            prometheus.Counter
	ActiveAuthSessions      prometheus.Gauge
	SessionsExpired         prometheus.Counter

	// Directory metrics
	SearchesTotal   *prometheus.CounterVec
	EntriesCreated  prometheus.Counter
	EntriesRecycled prometheus.Counter
	EntriesRevived  prometheus.Counter
	EntriesModified prometheus.Counter

	EndpointLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AuthNegotiationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "castellan_auth_negotiations_started_total",
			Help: "Total number of authentication negotiations opened",
		}),
		AuthSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "castellan_auth_successes_total",
			Help: "Total number of negotiations resolved with an issued token",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "castellan_auth_failures_total",
			Help: "Total number of negotiations resolved as denied",
		}),
		ActiveAuthSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "castellan_active_auth_sessions",
			Help: "Current number of unresolved authentication negotiations",
		}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "castellan_auth_sessions_expired_total",
			Help: "Total number of negotiations expired by the sweeper",
		}),
		SearchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "castellan_searches_total",
			Help: "Total number of search operations, labeled by entry set",
		}, []string{"set"}),
		EntriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "castellan_entries_created_total",
			Help: "Total number of entries created",
		}),
		EntriesRecycled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "castellan_entries_recycled_total",
			Help: "Total number of entries soft-deleted into the recycle set",
		}),
		EntriesRevived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "castellan_entries_revived_total",
			Help: "Total number of entries restored from the recycle set",
		}),
		EntriesModified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "castellan_entries_modified_total",
			Help: "Total number of entries changed by modify operations",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "castellan_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}
