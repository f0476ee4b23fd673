package monitoring

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskchat/taskchat/pkg/config"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMonitoringService(t *testing.T) {
	t.Run("Should create disabled service when nil config provided", func(t *testing.T) {
		service, err := NewMonitoringService(context.Background(), nil)
		require.NoError(t, err)
		assert.False(t, service.IsInitialized())
		assert.Equal(t, "/metrics", service.Path())
		assert.NotNil(t, service.Meter())
	})
	t.Run("Should fail with invalid config", func(t *testing.T) {
		service, err := NewMonitoringService(context.Background(), &Config{Enabled: true, Path: "/api/metrics"})
		assert.Error(t, err)
		assert.Nil(t, service)
		assert.Contains(t, err.Error(), "cannot be under /api/")
	})
	t.Run("Should fall back to a disabled service on invalid config", func(t *testing.T) {
		service := NewMonitoringServiceWithFallback(context.Background(), &Config{Enabled: true, Path: ""})
		assert.False(t, service.IsInitialized())
		assert.Error(t, service.InitializationError())
	})
	t.Run("Should expose agent metrics on the exporter handler", func(t *testing.T) {
		service, err := NewMonitoringService(context.Background(), &Config{Enabled: true, Path: "/metrics"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = service.Shutdown(context.Background()) })
		require.True(t, service.IsInitialized())
		m := service.AgentMetrics(context.Background())
		m.TurnCompleted("replied", 2, 150*time.Millisecond)
		m.ToolCalled("create_item", true)
		w := httptest.NewRecorder()
		service.ExporterHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
		body, err := io.ReadAll(w.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "taskchat_turns_total")
		assert.Contains(t, string(body), "taskchat_tool_calls_total")
	})
	t.Run("Should return 503 from exporter when disabled", func(t *testing.T) {
		service, err := NewMonitoringService(context.Background(), DefaultConfig())
		require.NoError(t, err)
		w := httptest.NewRecorder()
		service.ExporterHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
	t.Run("Should pass requests through when disabled", func(t *testing.T) {
		service, err := NewMonitoringService(context.Background(), DefaultConfig())
		require.NoError(t, err)
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.Use(service.GinMiddleware(context.Background()))
		r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestFromAppConfig(t *testing.T) {
	t.Run("Should map the application section", func(t *testing.T) {
		cfg := FromAppConfig(&config.MonitoringConfig{Enabled: true, Path: "/prom"})
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "/prom", cfg.Path)
	})
	t.Run("Should keep the default path when empty", func(t *testing.T) {
		cfg := FromAppConfig(&config.MonitoringConfig{Enabled: true})
		assert.Equal(t, "/metrics", cfg.Path)
	})
}

func TestAgentMetrics(t *testing.T) {
	t.Run("Should record turn and completion measurements", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		m := NewAgentMetrics(context.Background(), provider.Meter("test"))
		m.TurnCompleted("max_rounds", 5, time.Second)
		m.CompletionCalled("ok", 200*time.Millisecond)
		m.AuthAttempt(context.Background(), "success")
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		names := map[string]bool{}
		for _, sm := range rm.ScopeMetrics {
			for _, metric := range sm.Metrics {
				names[metric.Name] = true
			}
		}
		assert.True(t, names["taskchat_turns_total"])
		assert.True(t, names["taskchat_turn_rounds"])
		assert.True(t, names["taskchat_completion_duration_seconds"])
		assert.True(t, names["taskchat_auth_attempts_total"])
		assert.False(t, names["taskchat_tool_calls_total"])
	})
}
