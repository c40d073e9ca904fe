package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executionsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_executions_recorded_total",
			Help: "The total number of buffered execution records",
		},
	)
	executionsSampledOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_executions_sampled_out_total",
			Help: "The total number of execution records discarded by sampling",
		},
	)
	executionsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_executions_dropped_total",
			Help: "The total number of execution records dropped as invalid",
		},
	)
	batchesDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_batches_drained_total",
			Help: "The total number of batches extracted from the buffer",
		},
	)
)
