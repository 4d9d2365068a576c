// Package metrics exposes Prometheus instrumentation for the tenant registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TenantsRegistered prometheus.Gauge
	SettingsReloads   prometheus.Counter
	ConnectFailures   *prometheus.CounterVec
}

// New registers registry metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		TenantsRegistered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relaydesk_tenants_registered",
			Help: "Number of tenants in the registry",
		}),
		SettingsReloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relaydesk_tenant_settings_reloads_total",
			Help: "Total hot reloads of the tenant document",
		}),
		ConnectFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_tenant_connect_failures_total",
			Help: "Total failed connect attempts during fan-out",
		}, []string{"tenant_id"}),
	}
}
