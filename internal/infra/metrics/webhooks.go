package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhookRequestsTotal)
}

// result: ok|bad_signature|unknown_job|error
var webhookRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "training_webhook_requests_total",
		Help: "Inbound training webhook deliveries by outcome.",
	},
	[]string{"result"},
)

func IncWebhook(result string) {
	webhookRequestsTotal.WithLabelValues(norm(result)).Inc()
}
