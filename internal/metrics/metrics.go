package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, route, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// WSConnections tracks open websocket connections by client type
	WSConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "ws_connections", Help: "Open websocket connections."},
		[]string{"client_type"},
	)
	// LocationPings counts accepted technician location pings
	LocationPings = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "location_pings_total", Help: "Accepted technician location pings."},
	)

	// JobTransitions counts job status changes by target status
	JobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "job_transitions_total", Help: "Job status transitions by target status."},
		[]string{"status"},
	)

	// RoutePlans counts route planning runs by mode and outcome
	RoutePlans = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_plans_total", Help: "Route planning runs by mode and outcome."},
		[]string{"mode", "outcome"},
	)
	// RoutePlanDuration records planning latencies in seconds
	RoutePlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_plan_duration_seconds", Help: "Route planning duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}},
	)

	// GeocodeRequests counts geocoder lookups by outcome
	GeocodeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geocode_requests_total", Help: "Geocoder lookups by outcome."},
		[]string{"outcome"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WSConnections)
		Registry.MustRegister(LocationPings)
		Registry.MustRegister(JobTransitions)
		Registry.MustRegister(RoutePlans)
		Registry.MustRegister(RoutePlanDuration)
		Registry.MustRegister(GeocodeRequests)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
