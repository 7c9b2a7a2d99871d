package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the scan loop, the relay, and print dispatch
var (
	ScanTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_ticks_total",
			Help: "Total number of capture ticks fired across all scan sessions",
		},
	)

	ScanTicksSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_ticks_skipped_total",
			Help: "Total number of ticks skipped because a recognition call was still in flight",
		},
	)

	RecognitionErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recognition_errors_total",
			Help: "Total number of failed recognition calls (treated as a miss)",
		},
	)

	RecognitionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recognition_duration_seconds",
			Help:    "Duration of recognition calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	MatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_matches_total",
			Help: "Total number of confirmed matches by scan mode",
		},
		[]string{"mode"},
	)

	RelayForwardsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_forwards_total",
			Help: "Total number of scan requests forwarded to a registered printer",
		},
	)

	RelayDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_drops_total",
			Help: "Total number of scan requests dropped because no printer was registered",
		},
	)

	PrintJobsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "print_jobs_total",
			Help: "Total number of print requests dispatched by the watcher",
		},
	)

	PrintJobErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "print_job_errors_total",
			Help: "Total number of print dispatch failures",
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(ScanTicksTotal)
	prometheus.MustRegister(ScanTicksSkippedTotal)
	prometheus.MustRegister(RecognitionErrorsTotal)
	prometheus.MustRegister(RecognitionDuration)
	prometheus.MustRegister(MatchesTotal)
	prometheus.MustRegister(RelayForwardsTotal)
	prometheus.MustRegister(RelayDropsTotal)
	prometheus.MustRegister(PrintJobsTotal)
	prometheus.MustRegister(PrintJobErrorsTotal)
}
