package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutRequestsTotal counts checkout outcomes by dispatch path and charge mode.
	CheckoutRequestsTotal *prometheus.CounterVec
	// ProcessorSessionsTotal counts hosted session creation attempts.
	ProcessorSessionsTotal *prometheus.CounterVec
	// ProcessorLatency records session creation latency in milliseconds.
	ProcessorLatency *prometheus.HistogramVec
	// FulfillmentTotal counts fulfillment transactions by product kind.
	FulfillmentTotal *prometheus.CounterVec
	// NotificationsTotal counts confirmation notification outcomes.
	NotificationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_requests_total",
			Help:      "Count of checkout requests by dispatch path, charge mode and result.",
		}, []string{"path", "mode", "result"})
		ProcessorSessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_processor_sessions_total",
			Help:      "Count of payment processor session creations by outcome.",
		}, []string{"provider", "result"})
		ProcessorLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_processor_duration_ms",
			Help:      "Latency of payment processor session creation in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"provider"})
		FulfillmentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulfillment_total",
			Help:      "Count of fulfillment transactions by product kind and result.",
		}, []string{"kind", "result"})
		NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_notifications_total",
			Help:      "Count of order confirmation notifications by outcome.",
		}, []string{"result"})

		CheckoutRequestsTotal = register(reg, CheckoutRequestsTotal)
		ProcessorSessionsTotal = register(reg, ProcessorSessionsTotal)
		ProcessorLatency = register(reg, ProcessorLatency)
		FulfillmentTotal = register(reg, FulfillmentTotal)
		NotificationsTotal = register(reg, NotificationsTotal)
	})
}
