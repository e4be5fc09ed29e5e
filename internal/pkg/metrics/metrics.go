package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	BatchesSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sweeper",
		Name:      "batches_submitted_total",
		Help:      "Atomic batches accepted by the wallet.",
	})

	BatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweeper",
		Name:      "batch_outcomes_total",
		Help:      "Terminal outcomes of tracked batches.",
	}, []string{"outcome"})

	FallbackTransfers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweeper",
		Name:      "fallback_transfers_total",
		Help:      "Individual transfers sent by the sequential path.",
	}, []string{"result"})

	StatusPolls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sweeper",
		Name:      "status_polls_total",
		Help:      "wallet_getCallsStatus requests issued.",
	})

	RPCErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweeper",
		Name:      "rpc_errors_total",
		Help:      "Wallet RPC failures by method and error kind.",
	}, []string{"method", "kind"})

	DiscoveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sweeper",
		Name:      "discovery_duration_seconds",
		Help:      "Time spent scanning balances for one session.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	registerOnce sync.Once
)

// MustRegister registers all collectors once; later calls are no-ops.
func MustRegister(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(BatchesSubmitted, BatchOutcomes, FallbackTransfers, StatusPolls, RPCErrors, DiscoveryDuration)
	})
}
