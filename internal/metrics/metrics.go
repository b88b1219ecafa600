package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baykus_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "baykus_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baykus_messages_sent_total",
			Help: "Messages appended to conversation history",
		},
		[]string{"kind"}, // "room" or "dm"
	)

	MessagesArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "baykus_messages_archived_total",
			Help: "Overflow messages handed off to the archive store",
		},
	)

	ArchiveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "baykus_archive_failures_total",
			Help: "Archive handoffs that failed (batch dropped)",
		},
	)

	HubPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baykus_hub_publishes_total",
			Help: "Events published through the notification hub",
		},
		[]string{"type"},
	)

	BroadcastFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "baykus_broadcast_fanout_sessions",
			Help:    "Live sessions reached per broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "baykus_sessions_evicted_total",
			Help: "Sessions removed after a failed delivery",
		},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "baykus_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limit actor",
		},
	)

	// Storage metrics
	StorageReadLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "baykus_storage_read_latency_seconds",
			Help:    "Pebble read latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	StorageCommitLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "baykus_storage_commit_latency_seconds",
			Help:    "Pebble batch commit latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
)

// StorageHook adapts the Prometheus histograms to the storage metrics
// surface expected by pebblestore.Options.
type StorageHook struct{}

func (StorageHook) ObserveRead(elapsed time.Duration, _ int) {
	StorageReadLatency.Observe(elapsed.Seconds())
}

func (StorageHook) ObserveBatchCommit(elapsed time.Duration, _ int) {
	StorageCommitLatency.Observe(elapsed.Seconds())
}
