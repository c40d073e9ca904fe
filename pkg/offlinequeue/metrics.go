package offlinequeue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	offlineEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_offline_batches_enqueued_total",
			Help: "The total number of batches persisted after exhausted retries",
		},
	)
	offlineReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_offline_batches_replayed_total",
			Help: "The total number of persisted batches delivered on replay",
		},
	)
	offlineEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_offline_batches_evicted_total",
			Help: "The total number of persisted batches discarded unsent",
		},
	)
)
