package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Engine client metrics
	EngineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vassal_bridge_engine_requests_total",
			Help: "Total number of container engine API calls by method and status",
		},
		[]string{"method", "status"},
	)

	EngineRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vassal_bridge_engine_request_duration_seconds",
			Help:    "Container engine API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Lifecycle metrics
	ConflictRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vassal_bridge_conflict_retries_total",
			Help: "Total number of create attempts retried after a name conflict",
		},
	)

	ContainersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vassal_bridge_containers_created_total",
			Help: "Total number of containers created",
		},
	)

	ContainersDestroyedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vassal_bridge_containers_destroyed_total",
			Help: "Total number of containers stopped and deleted",
		},
	)

	StartupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vassal_bridge_startup_duration_seconds",
			Help:    "Time from first create attempt to successful start",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Attach metrics
	AttachBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vassal_bridge_attach_bytes_total",
			Help: "Total number of container output bytes forwarded to the log",
		},
	)
)

func init() {
	prometheus.MustRegister(EngineRequestsTotal)
	prometheus.MustRegister(EngineRequestDuration)
	prometheus.MustRegister(ConflictRetriesTotal)
	prometheus.MustRegister(ContainersCreatedTotal)
	prometheus.MustRegister(ContainersDestroyedTotal)
	prometheus.MustRegister(StartupDuration)
	prometheus.MustRegister(AttachBytesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
