package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	requestsTotal   *prometheus.CounterVec
	slotQueries     *prometheus.CounterVec
	bookingLatency  *prometheus.HistogramVec
	outboxPublished prometheus.Counter
	outboxFailures  prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podologia",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Booking write attempts by source and outcome",
		}, []string{"source", "outcome"}),
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podologia",
			Subsystem: "booking",
			Name:      "slot_queries_total",
			Help:      "Slot listings served",
		}, []string{"closed"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "podologia",
			Subsystem: "booking",
			Name:      "write_latency_seconds",
			Help:      "Latency of booking writes including lock wait",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		outboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "podologia",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events published to Kafka",
		}),
		outboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "podologia",
			Subsystem: "outbox",
			Name:      "publish_failures_total",
			Help:      "Failed outbox publish batches",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.slotQueries, m.bookingLatency, m.outboxPublished, m.outboxFailures)
	return m
}

// ObserveBooking records one write attempt. outcome is "booked", a
// rejection reason, "conflict" or "error".
func (m *BookingMetrics) ObserveBooking(source, outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(source, outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery(closed bool) {
	if m == nil {
		return
	}
	label := "false"
	if closed {
		label = "true"
	}
	m.slotQueries.WithLabelValues(label).Inc()
}

func (m *BookingMetrics) ObserveLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *BookingMetrics) ObserveOutboxPublished(n int) {
	if m == nil {
		return
	}
	m.outboxPublished.Add(float64(n))
}

func (m *BookingMetrics) ObserveOutboxFailure() {
	if m == nil {
		return
	}
	m.outboxFailures.Inc()
}
