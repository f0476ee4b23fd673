package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskchat/taskchat/engine/infra/monitoring"
	"github.com/taskchat/taskchat/pkg/config"
	"github.com/taskchat/taskchat/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	serverShutdownTimeout = 10 * time.Second
	cleanupTimeout        = 30 * time.Second
	httpReadTimeout       = 15 * time.Second
	httpIdleTimeout       = 60 * time.Second
	hostAny               = "0.0.0.0"
	hostLoopback          = "127.0.0.1"
)

type Server struct {
	config     *config.Config
	router     *gin.Engine
	monitoring *monitoring.Service
	metrics    *monitoring.AgentMetrics
	store      readinessChecker
	ctx        context.Context
	cancel     context.CancelFunc
	cleanupMu  sync.Mutex
	cleanups   []func()
}

type readinessChecker interface {
	HealthCheck(ctx context.Context) error
}

func NewServer(ctx context.Context) (*Server, error) {
	serverCtx, cancel := context.WithCancel(ctx)
	cfg := config.FromContext(serverCtx)
	if cfg == nil {
		cancel()
		return nil, fmt.Errorf("configuration missing from context; attach a manager with config.ContextWithManager")
	}
	return &Server{
		config: cfg,
		ctx:    serverCtx,
		cancel: cancel,
	}, nil
}

// Run wires dependencies, serves HTTP and blocks until ctx is done or the listener fails.
func (s *Server) Run() error {
	log := logger.FromContext(s.ctx)
	state, err := s.setupDependencies()
	defer s.cleanup()
	if err != nil {
		return err
	}
	if err := s.buildRouter(state); err != nil {
		return err
	}
	srv := s.createHTTPServer()
	g, gctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		log.Info("Starting HTTP server", "address", "http://"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), serverShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("Server shutdown completed successfully")
		return nil
	})
	s.logStartupBanner()
	return g.Wait()
}

// Shutdown stops a running server.
func (s *Server) Shutdown() {
	s.cancel()
}

// Handler exposes the built router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) createHTTPServer() *http.Server {
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: httpReadTimeout,
		ReadTimeout:       httpReadTimeout,
		WriteTimeout:      writeTimeout(s.config),
		IdleTimeout:       httpIdleTimeout,
	}
}

// writeTimeout covers a full turn: every round plus its retry and backoff.
func writeTimeout(cfg *config.Config) time.Duration {
	attempts := time.Duration(cfg.Agent.MaxToolRounds+1) * 2
	turn := attempts*cfg.Agent.RoundTimeout + attempts*cfg.Agent.RetryBackoff
	if cfg.Server.Timeout > turn {
		return cfg.Server.Timeout
	}
	return turn
}

func (s *Server) addCleanup(fn func()) {
	if fn == nil {
		return
	}
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

func (s *Server) cleanup() {
	s.cleanupMu.Lock()
	fns := s.cleanups
	s.cleanups = nil
	s.cleanupMu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		s.runCleanupWithTimeout(fns[i], cleanupTimeout, len(fns)-1-i)
	}
}

func (s *Server) runCleanupWithTimeout(fn func(), timeout time.Duration, index int) {
	log := logger.FromContext(s.ctx)
	done := make(chan struct{})
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Cleanup function panicked", "index", index, "panic", r)
			}
			close(done)
		}()
		fn()
	}()
	select {
	case <-done:
		log.Debug("Cleanup function completed", "index", index, "duration", time.Since(start))
	case <-time.After(timeout):
		log.Warn("Cleanup function exceeded timeout", "index", index, "timeout", timeout, "elapsed", time.Since(start))
	}
}
