package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskchat/taskchat/engine/auth"
	monitoringmw "github.com/taskchat/taskchat/engine/infra/monitoring/middleware"
	"github.com/taskchat/taskchat/engine/infra/server/router"
	"github.com/taskchat/taskchat/pkg/config"
	"github.com/taskchat/taskchat/pkg/logger"
)

func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "server.db")
	cfg.LLM.Provider = "mock"
	cfg.LLM.Model = "mock"
	cfg.Auth.JWTSecret = "server-secret"
	cfg.RateLimit.Limit = 2
	cfg.Monitoring.Enabled = true
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{config: cfg, ctx: ctx, cancel: cancel}
	t.Cleanup(func() {
		s.cleanup()
		cancel()
	})
	state, err := s.setupDependencies()
	require.NoError(t, err)
	require.NoError(t, s.buildRouter(state))
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	t.Run("Should serve liveness and readiness probes", func(t *testing.T) {
		s := newTestServer(t, testAppConfig(t))
		w := serve(s, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
		w = serve(s, httptest.NewRequest(http.MethodGet, "/ready", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ready"`)
	})
	t.Run("Should expose prometheus metrics", func(t *testing.T) {
		monitoringmw.ResetMetricsForTesting()
		s := newTestServer(t, testAppConfig(t))
		serve(s, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
		w := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "taskchat_http_requests_total")
	})
	t.Run("Should run an authenticated chat turn end to end", func(t *testing.T) {
		cfg := testAppConfig(t)
		s := newTestServer(t, cfg)
		verifier, err := auth.NewVerifier(&cfg.Auth)
		require.NoError(t, err)
		token, err := verifier.Issue("alice", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hello"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		w := serve(s, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Mock response for: hello", body["agent_reply"])
		assert.NotEmpty(t, w.Header().Get(router.RequestIDHeader))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	})
	t.Run("Should reject unauthenticated API calls", func(t *testing.T) {
		s := newTestServer(t, testAppConfig(t))
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/conversations", http.NoBody))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
	t.Run("Should rate limit per user", func(t *testing.T) {
		cfg := testAppConfig(t)
		s := newTestServer(t, cfg)
		verifier, err := auth.NewVerifier(&cfg.Auth)
		require.NoError(t, err)
		token, err := verifier.Issue("bob", time.Hour)
		require.NoError(t, err)
		codes := make([]int, 0, 3)
		for range 3 {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+token)
			codes = append(codes, serve(s, req).Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})
	t.Run("Should fail to build without a jwt secret", func(t *testing.T) {
		cfg := testAppConfig(t)
		cfg.Auth.JWTSecret = ""
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s := &Server{config: cfg, ctx: ctx, cancel: cancel}
		defer s.cleanup()
		state, err := s.setupDependencies()
		require.NoError(t, err)
		assert.ErrorIs(t, s.buildRouter(state), auth.ErrNoSecret)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(logger.NewLogger(logger.TestConfig())))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	t.Run("Should keep a valid incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(router.RequestIDHeader, "0b5e7f4e-8f2b-4a8b-9f1d-3c2e5a6b7c8d")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "0b5e7f4e-8f2b-4a8b-9f1d-3c2e5a6b7c8d", w.Header().Get(router.RequestIDHeader))
	})
	t.Run("Should replace a malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(router.RequestIDHeader, "<script>")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.NotEqual(t, "<script>", w.Header().Get(router.RequestIDHeader))
		assert.Len(t, w.Header().Get(router.RequestIDHeader), 36)
	})
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	t.Run("Should echo an allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})
	t.Run("Should omit headers for other origins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
	t.Run("Should short circuit preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", http.NoBody)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func TestReadyHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Run("Should report 503 when the store is down", func(t *testing.T) {
		r := gin.New()
		r.GET("/ready", CreateReadyHandler(fakeChecker{err: errors.New("down")}))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", http.NoBody))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestWriteTimeout(t *testing.T) {
	t.Run("Should cover every round with its retry", func(t *testing.T) {
		cfg := config.Default()
		cfg.Server.Timeout = time.Second
		cfg.Agent.MaxToolRounds = 2
		cfg.Agent.RoundTimeout = 10 * time.Second
		cfg.Agent.RetryBackoff = time.Second
		assert.Equal(t, 66*time.Second, writeTimeout(cfg))
	})
	t.Run("Should keep a longer server timeout", func(t *testing.T) {
		cfg := config.Default()
		cfg.Server.Timeout = time.Hour
		assert.Equal(t, time.Hour, writeTimeout(cfg))
	})
	t.Run("Should classify sqlite paths", func(t *testing.T) {
		assert.Equal(t, "in-memory", sqliteMode(":memory:"))
		assert.Equal(t, "file-based", sqliteMode("/tmp/x.db"))
		assert.Equal(t, "unknown", sqliteMode(""))
	})
}
