// Package metrics exposes Prometheus collectors for the map bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapbridge_commands_total",
		Help: "Host commands dispatched, by method and result",
	}, []string{"method", "result"})
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapbridge_events_total",
		Help: "Events delivered to the host, by method",
	}, []string{"method"})
	ClicksDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapbridge_clicks_dropped_total",
		Help: "Annotation clicks that resolved to no point or poi",
	})
	StyleBuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapbridge_style_builds_total",
		Help: "Style builds requested from the engine, by result",
	}, []string{"result"})
	StyleBuildDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapbridge_style_build_duration_ms",
		Help:    "Time between a style build request and the engine's style-loaded callback",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	BusDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapbridge_bus_dropped_total",
		Help: "Events skipped for a slow stream subscriber",
	})
	ViewsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mapbridge_views_active",
		Help: "Map views currently alive",
	})
)

func init() {
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(ClicksDroppedTotal)
	prometheus.MustRegister(StyleBuildsTotal)
	prometheus.MustRegister(StyleBuildDurationMs)
	prometheus.MustRegister(BusDroppedTotal)
	prometheus.MustRegister(ViewsActive)
}

// Handler serves the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
