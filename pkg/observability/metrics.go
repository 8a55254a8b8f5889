package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Permission resolution metrics
	PermissionChecksTotal     *prometheus.CounterVec
	PermissionResolveDuration *prometheus.HistogramVec

	// Hub metrics
	HubTopicsActive           prometheus.Gauge
	HubEventsPublishedTotal   prometheus.Counter
	HubDeliveriesTotal        prometheus.Counter
	HubDeliveriesDroppedTotal prometheus.Counter

	// Gateway metrics
	GatewayConnectionsActive  prometheus.Gauge
	GatewayConnectionsTotal   *prometheus.CounterVec
	GatewayCommandsTotal      *prometheus.CounterVec
	GatewayFramesDroppedTotal prometheus.Counter

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Redis metrics
	RedisConnectionsActive prometheus.Gauge
	RedisCommandsTotal     *prometheus.CounterVec
	RedisCommandDuration   *prometheus.HistogramVec

	// Business metrics
	ServersTotal         prometheus.Gauge
	ChannelsTotal        prometheus.Gauge
	MembersTimedOutTotal prometheus.Gauge
	TimeoutsSweptTotal   prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astricord_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astricord_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astricord_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astricord_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Permission resolution metrics
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astricord_permission_checks_total",
				Help: "Total number of permission checks",
			},
			[]string{"scope", "outcome"},
		),
		PermissionResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astricord_permission_resolve_duration_seconds",
				Help:    "Permission resolution duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"scope"},
		),

		// Hub metrics
		HubTopicsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astricord_hub_topics_active",
				Help: "Number of topics with at least one subscriber",
			},
		),
		HubEventsPublishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "astricord_hub_events_published_total",
				Help: "Total number of events published to the hub",
			},
		),
		HubDeliveriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "astricord_hub_deliveries_total",
				Help: "Total number of frames delivered to subscribers",
			},
		),
		HubDeliveriesDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "astricord_hub_deliveries_dropped_total",
				Help: "Total number of frames dropped due to full send buffers",
			},
		),

		// Gateway metrics
		GatewayConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astricord_gateway_connections_active",
				Help: "Number of open gateway connections",
			},
		),
		GatewayConnectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astricord_gateway_connections_total",
				Help: "Total number of gateway connections accepted",
			},
			[]string{"identity"},
		),
		GatewayCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astricord_gateway_commands_total",
				Help: "Total number of gateway commands processed",
			},
			[]string{"type"},
		),
		GatewayFramesDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "astricord_gateway_frames_dropped_total",
				Help: "Total number of malformed inbound frames dropped",
			},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astricord_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astricord_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astricord_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astricord_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		// Redis metrics
		RedisConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astricord_redis_connections_active",
				Help: "Number of active Redis connections",
			},
		),
		RedisCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astricord_redis_commands_total",
				Help: "Total number of Redis commands",
			},
			[]string{"command", "status"},
		),
		RedisCommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astricord_redis_command_duration_seconds",
				Help:    "Redis command duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"command"},
		),

		// Business metrics
		ServersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astricord_servers_total",
				Help: "Total number of servers",
			},
		),
		ChannelsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astricord_channels_total",
				Help: "Total number of channels",
			},
		),
		MembersTimedOutTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astricord_members_timed_out",
				Help: "Number of members currently timed out",
			},
		),
		TimeoutsSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "astricord_timeouts_swept_total",
				Help: "Total number of expired timeouts cleared by the janitor",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.PermissionChecksTotal,
		m.PermissionResolveDuration,
		m.HubTopicsActive,
		m.HubEventsPublishedTotal,
		m.HubDeliveriesTotal,
		m.HubDeliveriesDroppedTotal,
		m.GatewayConnectionsActive,
		m.GatewayConnectionsTotal,
		m.GatewayCommandsTotal,
		m.GatewayFramesDroppedTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.RedisConnectionsActive,
		m.RedisCommandsTotal,
		m.RedisCommandDuration,
		m.ServersTotal,
		m.ChannelsTotal,
		m.MembersTimedOutTotal,
		m.TimeoutsSweptTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
