package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoveries_total",
			Help: "Completed recoveries by canonical state",
		},
		[]string{"state"},
	)
	ProcessorErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_errors_total",
			Help: "Transient processor failures by processor",
		},
		[]string{"processor"},
	)
	DuplicatesDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicates_detected_total",
			Help: "Duplicate candidates reported",
		},
	)
	BulkBatchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulk_batch_seconds",
			Help:    "Wall-clock duration of bulk recovery batches",
			Buckets: prometheus.DefBuckets,
		},
	)
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RecoveriesTotal)
	prometheus.MustRegister(ProcessorErrorsTotal)
	prometheus.MustRegister(DuplicatesDetectedTotal)
	prometheus.MustRegister(BulkBatchSeconds)
	prometheus.MustRegister(WorkerQueueDepth)
}
