package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsSucceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_uploads_succeeded_total",
			Help: "The total number of successfully delivered batches",
		},
	)
	uploadsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_uploads_failed_total",
			Help: "The total number of batches that could not be delivered",
		},
	)
	uploadRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_upload_retries_total",
			Help: "The total number of upload retry attempts",
		},
	)
	executionsUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_executions_uploaded_total",
			Help: "The total number of delivered execution records",
		},
	)
	recordsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_malformed_records_dropped_total",
			Help: "The total number of execution records dropped during serialization",
		},
	)
)
