package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records staff authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scolarix_auth_attempts_total",
			Help: "Total number of staff authentication attempts",
		},
		[]string{"result"},
	)

	// InvitationTransitions counts invitation lifecycle operations and their
	// outcome (ok|rejected|error).
	InvitationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scolarix_invitation_transitions_total",
			Help: "Total number of invitation lifecycle transitions",
		},
		[]string{"action", "result"},
	)

	// ImportedResults counts exam-result rows accepted by the import endpoint.
	ImportedResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scolarix_imported_results_total",
			Help: "Total number of exam result rows imported",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scolarix_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
