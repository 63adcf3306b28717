// Package metrics exposes Prometheus instrumentation for the panel.
// Every consumer accepts a nil metrics handle, which disables
// instrumentation at zero overhead.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry with the standard Go
// and process collectors. Idempotent.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// RegisterServersGauge exposes the current server count through the
// given callback, sampled at scrape time. No-op when metrics are
// disabled. The callback must be safe for concurrent use.
func RegisterServersGauge(count func() float64) {
	if registry == nil {
		return
	}
	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "warden_servers",
			Help: "Current number of provisioned servers",
		},
		count,
	))
}

// Handler returns the scrape endpoint handler. Serves an empty payload
// when metrics are disabled so the route can be mounted unconditionally.
func Handler() http.Handler {
	if registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
