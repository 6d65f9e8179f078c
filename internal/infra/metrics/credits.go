package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(creditsConsumedTotal, creditDenialsTotal)
}

var (
	creditsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_consumed_total",
			Help: "Credits committed per usage kind.",
		},
		[]string{"kind"},
	)

	creditDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_denials_total",
			Help: "Admissions rejected for insufficient credit, per usage kind.",
		},
		[]string{"kind"},
	)
)

func IncCreditConsumed(kind string) {
	creditsConsumedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncCreditDenied(kind string) {
	creditDenialsTotal.WithLabelValues(norm(kind)).Inc()
}
