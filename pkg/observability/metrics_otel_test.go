package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeterProvider creates a test meter provider with a manual reader
func setupTestMeterProvider(t *testing.T) (*metric.MeterProvider, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return provider, reader
}

func collectMetricNames(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}
	names := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = m
		}
	}
	return names
}

func TestNewOTelMetrics(t *testing.T) {
	t.Run("successful initialization", func(t *testing.T) {
		provider, _ := setupTestMeterProvider(t)
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				t.Logf("Error shutting down provider: %v", err)
			}
		}()

		m, err := NewOTelMetrics()
		if err != nil {
			t.Fatalf("NewOTelMetrics() error = %v, want nil", err)
		}

		if m == nil {
			t.Fatal("NewOTelMetrics() returned nil metrics")
		}

		// Verify that all metric instruments are initialized
		if m.httpRequestsTotal == nil {
			t.Error("httpRequestsTotal is nil")
		}
		if m.httpRequestDuration == nil {
			t.Error("httpRequestDuration is nil")
		}
		if m.httpRequestSize == nil {
			t.Error("httpRequestSize is nil")
		}
		if m.httpResponseSize == nil {
			t.Error("httpResponseSize is nil")
		}
		if m.dbConnectionsActive == nil {
			t.Error("dbConnectionsActive is nil")
		}
		if m.dbConnectionsIdle == nil {
			t.Error("dbConnectionsIdle is nil")
		}
		if m.dbConnectionsMax == nil {
			t.Error("dbConnectionsMax is nil")
		}
		if m.dbQueryDuration == nil {
			t.Error("dbQueryDuration is nil")
		}
		if m.dbQueriesTotal == nil {
			t.Error("dbQueriesTotal is nil")
		}
		if m.permissionChecksTotal == nil {
			t.Error("permissionChecksTotal is nil")
		}
		if m.permissionCheckDuration == nil {
			t.Error("permissionCheckDuration is nil")
		}
		if m.tokenCacheHitsTotal == nil {
			t.Error("tokenCacheHitsTotal is nil")
		}
		if m.tokenCacheMissesTotal == nil {
			t.Error("tokenCacheMissesTotal is nil")
		}
		if m.gatewayConnections == nil {
			t.Error("gatewayConnections is nil")
		}
		if m.gatewayCommands == nil {
			t.Error("gatewayCommands is nil")
		}
		if m.hubDeliveries == nil {
			t.Error("hubDeliveries is nil")
		}
	})
}

func TestOTelMetrics_RecordHTTPRequest(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		route        string
		statusCode   int
		duration     time.Duration
		requestSize  int64
		responseSize int64
	}{
		{
			name:         "successful GET request",
			method:       "GET",
			route:        "/v1/servers/srv1/channels",
			statusCode:   200,
			duration:     100 * time.Millisecond,
			requestSize:  0,
			responseSize: 1024,
		},
		{
			name:         "POST request with request body",
			method:       "POST",
			route:        "/v1/channels/chan1/messages",
			statusCode:   201,
			duration:     250 * time.Millisecond,
			requestSize:  512,
			responseSize: 256,
		},
		{
			name:         "error response",
			method:       "GET",
			route:        "/v1/servers/srv1/members/u1/permissions",
			statusCode:   404,
			duration:     50 * time.Millisecond,
			requestSize:  0,
			responseSize: 128,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, reader := setupTestMeterProvider(t)
			defer func() {
				if err := provider.Shutdown(context.Background()); err != nil {
					t.Logf("Error shutting down provider: %v", err)
				}
			}()

			m, err := NewOTelMetrics()
			if err != nil {
				t.Fatalf("NewOTelMetrics() error = %v", err)
			}

			ctx := context.Background()
			m.RecordHTTPRequest(ctx, tt.method, tt.route, tt.statusCode, tt.duration, tt.requestSize, tt.responseSize)

			recorded := collectMetricNames(t, reader)

			counter, ok := recorded["http.server.requests"]
			if !ok {
				t.Fatal("HTTP request counter not recorded")
			}
			if sum, ok := counter.Data.(metricdata.Sum[int64]); ok {
				if len(sum.DataPoints) > 0 && sum.DataPoints[0].Value != 1 {
					t.Errorf("Expected counter value 1, got %d", sum.DataPoints[0].Value)
				}
			}

			if _, ok := recorded["http.server.duration"]; !ok {
				t.Error("HTTP request duration not recorded")
			}
			if _, ok := recorded["http.server.request.size"]; tt.requestSize > 0 && !ok {
				t.Error("HTTP request size not recorded when requestSize > 0")
			}
			if _, ok := recorded["http.server.response.size"]; tt.responseSize > 0 && !ok {
				t.Error("HTTP response size not recorded when responseSize > 0")
			}
		})
	}
}

func TestOTelMetrics_RecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		duration  time.Duration
		err       error
	}{
		{
			name:      "successful SELECT",
			operation: "SELECT",
			duration:  50 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "failed UPDATE",
			operation: "UPDATE",
			duration:  75 * time.Millisecond,
			err:       errors.New("constraint violation"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, reader := setupTestMeterProvider(t)
			defer func() {
				if err := provider.Shutdown(context.Background()); err != nil {
					t.Logf("Error shutting down provider: %v", err)
				}
			}()

			m, err := NewOTelMetrics()
			if err != nil {
				t.Fatalf("NewOTelMetrics() error = %v", err)
			}

			ctx := context.Background()
			m.RecordDBQuery(ctx, tt.operation, tt.duration, tt.err)

			recorded := collectMetricNames(t, reader)

			if _, ok := recorded["db.queries.total"]; !ok {
				t.Error("DB queries counter not recorded")
			}
			if _, ok := recorded["db.query.duration"]; !ok {
				t.Error("DB query duration not recorded")
			}
		})
	}
}

func TestOTelMetrics_RecordPermissionCheck(t *testing.T) {
	tests := []struct {
		name    string
		scope   string
		allowed bool
	}{
		{name: "allowed server check", scope: "server", allowed: true},
		{name: "denied channel check", scope: "channel", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, reader := setupTestMeterProvider(t)
			defer func() {
				if err := provider.Shutdown(context.Background()); err != nil {
					t.Logf("Error shutting down provider: %v", err)
				}
			}()

			m, err := NewOTelMetrics()
			if err != nil {
				t.Fatalf("NewOTelMetrics() error = %v", err)
			}

			ctx := context.Background()
			m.RecordPermissionCheck(ctx, tt.scope, tt.allowed, 2*time.Millisecond)

			recorded := collectMetricNames(t, reader)

			if _, ok := recorded["permissions.checks.total"]; !ok {
				t.Error("Permission checks counter not recorded")
			}
			if _, ok := recorded["permissions.check.duration"]; !ok {
				t.Error("Permission check duration not recorded")
			}
		})
	}
}

func TestOTelMetrics_TokenCache(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	}()

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordTokenCacheHit(ctx)
	m.RecordTokenCacheHit(ctx)
	m.RecordTokenCacheMiss(ctx)

	recorded := collectMetricNames(t, reader)

	hits, ok := recorded["auth.token_cache.hits.total"]
	if !ok {
		t.Fatal("Token cache hits not recorded")
	}
	if sum, ok := hits.Data.(metricdata.Sum[int64]); ok {
		if len(sum.DataPoints) > 0 && sum.DataPoints[0].Value != 2 {
			t.Errorf("Expected 2 hits, got %d", sum.DataPoints[0].Value)
		}
	}

	if _, ok := recorded["auth.token_cache.misses.total"]; !ok {
		t.Error("Token cache misses not recorded")
	}
}

func TestOTelMetrics_Gateway(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	}()

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordGatewayConnection(ctx, 1, true)
	m.RecordGatewayConnection(ctx, -1, true)
	m.RecordGatewayCommand(ctx, "subscribe")
	m.RecordHubDeliveries(ctx, "messages:chan1", 3)

	recorded := collectMetricNames(t, reader)

	if _, ok := recorded["gateway.connections"]; !ok {
		t.Error("Gateway connections not recorded")
	}
	if _, ok := recorded["gateway.commands.total"]; !ok {
		t.Error("Gateway commands not recorded")
	}

	deliveries, ok := recorded["hub.deliveries.total"]
	if !ok {
		t.Fatal("Hub deliveries not recorded")
	}
	if sum, ok := deliveries.Data.(metricdata.Sum[int64]); ok {
		if len(sum.DataPoints) > 0 && sum.DataPoints[0].Value != 3 {
			t.Errorf("Expected 3 deliveries, got %d", sum.DataPoints[0].Value)
		}
	}
}

func TestOTelMetrics_MultipleOperations(t *testing.T) {
	t.Run("multiple HTTP requests", func(t *testing.T) {
		provider, reader := setupTestMeterProvider(t)
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				t.Logf("Error shutting down provider: %v", err)
			}
		}()

		m, err := NewOTelMetrics()
		if err != nil {
			t.Fatalf("NewOTelMetrics() error = %v", err)
		}

		ctx := context.Background()

		for i := 0; i < 5; i++ {
			m.RecordHTTPRequest(ctx, "GET", "/v1/gateway", 200, 100*time.Millisecond, 0, 1024)
		}

		recorded := collectMetricNames(t, reader)

		counter, ok := recorded["http.server.requests"]
		if !ok {
			t.Fatal("HTTP request counter not recorded")
		}
		if sum, ok := counter.Data.(metricdata.Sum[int64]); ok {
			if len(sum.DataPoints) > 0 && sum.DataPoints[0].Value != 5 {
				t.Errorf("Expected counter value 5, got %d", sum.DataPoints[0].Value)
			}
		}
	})
}
