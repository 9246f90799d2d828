package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking and payment flows.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	callbacksTotal     *prometheus.CounterVec
	dispatchTotal      *prometheus.CounterVec
	bookingLatency     *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Total appointment booking attempts",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "appointment",
			Name:      "transitions_total",
			Help:      "Total appointment status transition attempts",
		}, []string{"to", "outcome"}),
		callbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "payment",
			Name:      "gateway_callbacks_total",
			Help:      "Total payment gateway callbacks",
		}, []string{"outcome", "duplicate"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "notification",
			Name:      "dispatched_total",
			Help:      "Total notifications dispatched",
		}, []string{"kind", "live"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "request_latency_seconds",
			Help:      "Latency of appointment booking attempts",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.callbacksTotal, m.dispatchTotal, m.bookingLatency)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveTransition(to, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, outcome).Inc()
}

func (m *BookingMetrics) ObserveCallback(outcome string, duplicate bool) {
	if m == nil {
		return
	}
	label := "false"
	if duplicate {
		label = "true"
	}
	m.callbacksTotal.WithLabelValues(outcome, label).Inc()
}

func (m *BookingMetrics) ObserveDispatch(kind string, live bool) {
	if m == nil {
		return
	}
	label := "false"
	if live {
		label = "true"
	}
	m.dispatchTotal.WithLabelValues(kind, label).Inc()
}
