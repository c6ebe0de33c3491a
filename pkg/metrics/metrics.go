// Package metrics holds the Prometheus collectors of the bridge client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nft_bridge"

var (
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfers_total",
		Help:      "Bridge transfers by terminal outcome and direction",
	}, []string{"outcome", "direction"})

	StageTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_transitions_total",
		Help:      "Transfer state machine transitions by target stage",
	}, []string{"stage"})

	ReleasePollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "release_polls_total",
		Help:      "Release queries by result",
	}, []string{"result"})

	RelayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_requests_total",
		Help:      "Relay calls by method and outcome",
	}, []string{"method", "outcome"})

	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ownership_probe_duration_seconds",
		Help:      "Duration of a full ownership probe",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"network"})

	OwnershipCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ownership_cache_lookups_total",
		Help:      "Ownership cache lookups by result (hit, stale, miss, forced)",
	}, []string{"result"})
)

// RecordTransfer counts a transfer that reached a terminal stage.
func RecordTransfer(outcome, direction string) {
	TransfersTotal.WithLabelValues(outcome, direction).Inc()
}

// RecordRelayRequest counts a relay call.
func RecordRelayRequest(method string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	RelayRequestsTotal.WithLabelValues(method, outcome).Inc()
}
