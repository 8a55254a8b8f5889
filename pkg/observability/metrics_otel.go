package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	httpRequestSize     metric.Int64Histogram
	httpResponseSize    metric.Int64Histogram

	// Database metrics
	dbConnectionsActive metric.Int64UpDownCounter
	dbConnectionsIdle   metric.Int64UpDownCounter
	dbConnectionsMax    metric.Int64Gauge
	dbQueryDuration     metric.Float64Histogram
	dbQueriesTotal      metric.Int64Counter

	// Permission resolution metrics
	permissionChecksTotal   metric.Int64Counter
	permissionCheckDuration metric.Float64Histogram

	// Token cache metrics
	tokenCacheHitsTotal   metric.Int64Counter
	tokenCacheMissesTotal metric.Int64Counter

	// Gateway metrics
	gatewayConnections metric.Int64UpDownCounter
	gatewayCommands    metric.Int64Counter
	hubDeliveries      metric.Int64Counter
}

// NewOTelMetrics creates a new OTel metrics instance
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/AstromanXD/Astricord-sub001")

	m := &OTelMetrics{}
	var err error

	// HTTP metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration histogram: %w", err)
	}

	m.httpRequestSize, err = meter.Int64Histogram(
		"http.server.request.size",
		metric.WithDescription("HTTP request size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_size histogram: %w", err)
	}

	m.httpResponseSize, err = meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_response_size histogram: %w", err)
	}

	// Database metrics
	m.dbConnectionsActive, err = meter.Int64UpDownCounter(
		"db.connections.active",
		metric.WithDescription("Number of active database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_connections_active gauge: %w", err)
	}

	m.dbConnectionsIdle, err = meter.Int64UpDownCounter(
		"db.connections.idle",
		metric.WithDescription("Number of idle database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_connections_idle gauge: %w", err)
	}

	m.dbConnectionsMax, err = meter.Int64Gauge(
		"db.connections.max",
		metric.WithDescription("Maximum number of database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_connections_max gauge: %w", err)
	}

	m.dbQueryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_query_duration histogram: %w", err)
	}

	m.dbQueriesTotal, err = meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_queries_total counter: %w", err)
	}

	// Permission resolution metrics
	m.permissionChecksTotal, err = meter.Int64Counter(
		"permissions.checks.total",
		metric.WithDescription("Total number of permission checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create permission_checks_total counter: %w", err)
	}

	m.permissionCheckDuration, err = meter.Float64Histogram(
		"permissions.check.duration",
		metric.WithDescription("Permission resolution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create permission_check_duration histogram: %w", err)
	}

	// Token cache metrics
	m.tokenCacheHitsTotal, err = meter.Int64Counter(
		"auth.token_cache.hits.total",
		metric.WithDescription("Total number of token cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_cache_hits_total counter: %w", err)
	}

	m.tokenCacheMissesTotal, err = meter.Int64Counter(
		"auth.token_cache.misses.total",
		metric.WithDescription("Total number of token cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_cache_misses_total counter: %w", err)
	}

	// Gateway metrics
	m.gatewayConnections, err = meter.Int64UpDownCounter(
		"gateway.connections",
		metric.WithDescription("Number of open gateway connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway_connections counter: %w", err)
	}

	m.gatewayCommands, err = meter.Int64Counter(
		"gateway.commands.total",
		metric.WithDescription("Total number of gateway commands processed"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway_commands counter: %w", err)
	}

	m.hubDeliveries, err = meter.Int64Counter(
		"hub.deliveries.total",
		metric.WithDescription("Total number of frames delivered to subscribers"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hub_deliveries counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if requestSize > 0 {
		m.httpRequestSize.Record(ctx, requestSize, metric.WithAttributes(attrs...))
	}
	if responseSize > 0 {
		m.httpResponseSize.Record(ctx, responseSize, metric.WithAttributes(attrs...))
	}
}

// RecordDBQuery records a database query metric
func (m *OTelMetrics) RecordDBQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", "true"))
	} else {
		attrs = append(attrs, attribute.String("error", "false"))
	}

	m.dbQueriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.dbQueryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// UpdateDBConnectionStats updates database connection pool statistics
func (m *OTelMetrics) UpdateDBConnectionStats(ctx context.Context, active, idle, max int) {
	m.dbConnectionsActive.Add(ctx, int64(active))
	m.dbConnectionsIdle.Add(ctx, int64(idle))
}

// RecordPermissionCheck records a permission resolution metric
func (m *OTelMetrics) RecordPermissionCheck(ctx context.Context, scope string, allowed bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("permissions.scope", scope),
		attribute.Bool("permissions.allowed", allowed),
	}

	m.permissionChecksTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.permissionCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTokenCacheHit records a token cache hit
func (m *OTelMetrics) RecordTokenCacheHit(ctx context.Context) {
	m.tokenCacheHitsTotal.Add(ctx, 1)
}

// RecordTokenCacheMiss records a token cache miss
func (m *OTelMetrics) RecordTokenCacheMiss(ctx context.Context) {
	m.tokenCacheMissesTotal.Add(ctx, 1)
}

// RecordGatewayConnection records a gateway connection opening or closing
func (m *OTelMetrics) RecordGatewayConnection(ctx context.Context, delta int64, identified bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("gateway.identified", identified),
	}
	m.gatewayConnections.Add(ctx, delta, metric.WithAttributes(attrs...))
}

// RecordGatewayCommand records a processed gateway command
func (m *OTelMetrics) RecordGatewayCommand(ctx context.Context, commandType string) {
	attrs := []attribute.KeyValue{
		attribute.String("gateway.command", commandType),
	}
	m.gatewayCommands.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHubDeliveries records frames delivered for a publish
func (m *OTelMetrics) RecordHubDeliveries(ctx context.Context, topic string, count int64) {
	attrs := []attribute.KeyValue{
		attribute.String("hub.topic", topic),
	}
	m.hubDeliveries.Add(ctx, count, metric.WithAttributes(attrs...))
}
