package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		trainingJobsStartedTotal,
		trainingJobsReconciledTotal,
		trainingStartDuration,
	)
}

var (
	// result: started|rejected|provider_error
	trainingJobsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_jobs_started_total",
			Help: "Training submissions by result.",
		},
		[]string{"result"},
	)

	// status: succeeded|failed|canceled|timed_out|duplicate
	trainingJobsReconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_jobs_reconciled_total",
			Help: "Webhook-driven terminal transitions by resulting status.",
		},
		[]string{"status"},
	)

	trainingStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "training_start_duration_seconds",
			Help:    "Duration of the full submission path (storage + provider calls) in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

func IncTrainingStarted(result string) {
	trainingJobsStartedTotal.WithLabelValues(norm(result)).Inc()
}

func IncTrainingReconciled(status string) {
	trainingJobsReconciledTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveTrainingStart(seconds float64) {
	trainingStartDuration.Observe(seconds)
}
