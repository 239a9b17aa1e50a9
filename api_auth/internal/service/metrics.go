package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/icedoutskay/grainlify/pkg/monitoring"
)

// Metrics holds Prometheus metrics for the auth operations. A nil *Metrics
// records nothing.
type Metrics struct {
	Operations    *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	Renderings    *prometheus.CounterVec
	ProfileSource *prometheus.CounterVec
	ProfileCache  *prometheus.CounterVec
}

func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		Operations:    mc.NewCounter("auth_operations_total", "Auth operations by outcome", []string{"operation", "outcome"}),
		Duration:      mc.NewHistogram("auth_operation_duration_seconds", "Auth operation duration", []string{"operation"}, nil),
		Renderings:    mc.NewCounter("auth_login_renderings_total", "Login message renderings that verified", []string{"wallet_type", "rendering"}),
		ProfileSource: mc.NewCounter("auth_profile_source_total", "Where /me profile data came from", []string{"source"}),
		ProfileCache:  mc.NewCounter("auth_profile_cache_total", "GitHub profile cache lookups", []string{"result"}),
	}
}

func (m *Metrics) observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(CodeOf(err))
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) rendering(walletType, name string) {
	if m == nil {
		return
	}
	m.Renderings.WithLabelValues(walletType, name).Inc()
}

func (m *Metrics) profileSource(source string) {
	if m == nil {
		return
	}
	m.ProfileSource.WithLabelValues(source).Inc()
}

func (m *Metrics) cacheHook(result string) func() {
	if m == nil {
		return nil
	}
	counter := m.ProfileCache.WithLabelValues(result)
	return counter.Inc
}
