package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/biddyweb/go-osrm/request"
)

// Prometheus metrics for query execution and dispatch.
var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osrm_queries_total",
			Help: "Queries dispatched through the bridge, by service and outcome.",
		},
		[]string{"service", "status"},
	)

	queriesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "osrm_queries_in_flight",
			Help: "Queries currently executing on worker goroutines.",
		},
	)

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osrm_query_duration_seconds",
			Help:    "Wall-clock time spent inside the engine per query.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	callbackPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "osrm_callback_panics_total",
			Help: "Completion callbacks that panicked during dispatch.",
		},
	)
)

func init() {
	prometheus.MustRegister(queriesTotal)
	prometheus.MustRegister(queriesInFlight)
	prometheus.MustRegister(queryDuration)
	prometheus.MustRegister(callbackPanics)

	// Pre-initialize label combinations so they appear in /metrics with
	// value 0 from startup, rather than only after the first query.
	services := []string{
		request.ServiceRoute,
		request.ServiceLocate,
		request.ServiceNearest,
		request.ServiceTable,
	}
	for _, service := range services {
		for _, status := range []string{"success", "error"} {
			queriesTotal.WithLabelValues(service, status)
		}
		queryDuration.WithLabelValues(service)
	}
}
