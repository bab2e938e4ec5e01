package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState reports the connection manager state (0 disconnected, 1 connecting, 2 connected)
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gears_connection_state",
			Help: "Current state of the Redis session (0 disconnected, 1 connecting, 2 connected)",
		},
	)

	// ConnectionFailures counts failure events that tore down a session
	ConnectionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gears_connection_failures_total",
			Help: "Total number of connection failure events that tore down the Redis session",
		},
	)

	// AggregationPasses counts registration aggregation passes by execution site and outcome
	AggregationPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gears_aggregation_passes_total",
			Help: "Total number of registration aggregation passes",
		},
		[]string{"mode", "status"},
	)

	// RegistrationsListed is the number of merged registrations returned by the last successful pass
	RegistrationsListed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gears_registrations_listed",
			Help: "Number of merged registrations returned by the last successful listing",
		},
	)

	// ShardMismatches counts merged registrations observed on fewer shards than the cluster has
	ShardMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gears_shard_mismatch_total",
			Help: "Total number of merged registrations not present on every shard",
		},
	)

	// RegistrationOps counts register/unregister requests by outcome
	RegistrationOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gears_registration_ops_total",
			Help: "Total number of register and unregister operations",
		},
		[]string{"op", "status"},
	)

	// HTTPRequests counts API requests by route pattern and status code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gears_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPRequestDuration observes API latency by route pattern
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gears_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)
