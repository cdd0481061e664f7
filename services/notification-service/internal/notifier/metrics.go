package notifier

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	sent *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podologia",
			Name:      "notifications_sent_total",
			Help:      "Notification delivery attempts by channel, audience and outcome.",
		}, []string{"channel", "audience", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.sent)
	}
	return m
}

func (m *Metrics) ObserveDelivery(channel, audience, status string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(channel, audience, status).Inc()
}
