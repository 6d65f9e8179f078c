package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(mailSentTotal)
}

// kind: success|failure   status: sent|error
var mailSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notification_mail_total",
		Help: "Transactional emails about job outcomes by kind and delivery status.",
	},
	[]string{"kind", "status"},
)

func IncMail(kind, status string) {
	mailSentTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
