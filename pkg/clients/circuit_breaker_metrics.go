package clients

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// circuitBreakerState tracks the current state of each upstream breaker.
	// Values: 0=closed, 1=half-open, 2=open
	circuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_circuit_breaker_state",
			Help: "Current state of upstream circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	circuitBreakerStateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_circuit_breaker_state_transitions_total",
			Help: "Total number of upstream circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

func init() {
	prometheus.MustRegister(circuitBreakerState)
	prometheus.MustRegister(circuitBreakerStateTransitions)
}

// RecordCircuitBreakerTransition records a state transition in Prometheus.
func RecordCircuitBreakerTransition(name string, from, to CircuitBreakerState) {
	circuitBreakerStateTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	circuitBreakerState.WithLabelValues(name).Set(float64(to))
}

// CircuitBreakerMetricsCallback returns a callback suitable for
// CircuitBreakerConfig.OnStateChange that records metrics.
func CircuitBreakerMetricsCallback() func(string, CircuitBreakerState, CircuitBreakerState) {
	return RecordCircuitBreakerTransition
}
