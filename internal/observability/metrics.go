package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors exported on /metrics.
type Metrics struct {
	ConnectorCalls   *prometheus.CounterVec
	ConnectorLatency *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec
	PaymentStatus    *prometheus.CounterVec
	DrainedEntries   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ConnectorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payrail",
			Subsystem: "connector",
			Name:      "calls_total",
			Help:      "Connector calls by connector, flow and outcome.",
		}, []string{"connector", "flow", "outcome"}),
		ConnectorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "payrail",
			Subsystem: "connector",
			Name:      "latency_seconds",
			Help:      "Connector call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"connector", "flow"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "payrail",
			Subsystem: "connector",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per connector (0 closed, 1 half-open, 2 open).",
		}, []string{"connector"}),
		PaymentStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payrail",
			Subsystem: "payment",
			Name:      "attempt_status_total",
			Help:      "Terminal and intermediate attempt statuses recorded after a connector call.",
		}, []string{"connector", "flow", "status"}),
		DrainedEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payrail",
			Subsystem: "kv",
			Name:      "drained_entries_total",
			Help:      "Drainer stream entries persisted to the database.",
		}, []string{"op", "result"}),
	}

	for _, c := range []prometheus.Collector{
		m.ConnectorCalls,
		m.ConnectorLatency,
		m.BreakerState,
		m.PaymentStatus,
		m.DrainedEntries,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewNopMetrics returns collectors bound to a throwaway registry.
func NewNopMetrics() *Metrics {
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}
