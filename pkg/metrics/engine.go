package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics instruments the lifecycle engine. All methods are safe
// on a nil receiver, which disables collection entirely.
type EngineMetrics struct {
	provisions      *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	decommissions   prometheus.Counter
	portScanLength  prometheus.Histogram
	requestDuration *prometheus.HistogramVec
}

// NewEngineMetrics creates the engine metric family on the process
// registry. Returns nil when metrics are disabled.
func NewEngineMetrics() *EngineMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()
	return &EngineMetrics{
		provisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_engine_provisions_total",
				Help: "Total provisioning attempts by outcome",
			},
			[]string{"outcome"},
		),
		transitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_engine_transitions_total",
				Help: "Total lifecycle transition requests by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		decommissions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "warden_engine_decommissions_total",
				Help: "Total servers decommissioned",
			},
		),
		portScanLength: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "warden_engine_port_scan_length",
				Help:    "Ports examined per successful allocation; growth means the pool is filling up",
				Buckets: prometheus.ExponentialBuckets(1, 2, 11), // 1 .. 1024
			},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "warden_api_request_duration_milliseconds",
				Help: "HTTP request duration in milliseconds by route and status class",
				Buckets: []float64{
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
					5000, // 5s
				},
			},
			[]string{"route", "status"},
		),
	}
}

// ObserveProvision records one provisioning attempt.
func (m *EngineMetrics) ObserveProvision(outcome string) {
	if m == nil {
		return
	}
	m.provisions.WithLabelValues(outcome).Inc()
}

// ObserveTransition records one transition request.
func (m *EngineMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}

// ObserveDecommission records one completed decommission.
func (m *EngineMetrics) ObserveDecommission() {
	if m == nil {
		return
	}
	m.decommissions.Inc()
}

// ObservePortScan records how many ports a successful allocation
// examined.
func (m *EngineMetrics) ObservePortScan(scanned int) {
	if m == nil {
		return
	}
	m.portScanLength.Observe(float64(scanned))
}

// ObserveRequest records one HTTP request.
func (m *EngineMetrics) ObserveRequest(route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, status).
		Observe(float64(duration.Microseconds()) / 1000.0)
}
