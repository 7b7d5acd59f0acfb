package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Transitions    *prometheus.CounterVec
	RenderFailures prometheus.Counter
	RecordsLoaded  prometheus.Gauge
	Reloads        *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenes",
			Name:      "transitions_total",
			Help:      "Scene transitions, by destination scene kind.",
		}, []string{"kind"}),
		RenderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scenes",
			Name:      "render_failures_total",
			Help:      "Scenes that could not be rendered.",
		}),
		RecordsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scenes",
			Name:      "records_loaded",
			Help:      "Records in the active dataset.",
		}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenes",
			Name:      "dataset_reloads_total",
			Help:      "Dataset reload attempts, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(m.Transitions, m.RenderFailures, m.RecordsLoaded, m.Reloads)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
