package server

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	chatrouter "github.com/taskchat/taskchat/engine/chat/router"
	"github.com/taskchat/taskchat/engine/infra/server/appstate"
	authmw "github.com/taskchat/taskchat/engine/infra/server/middleware/auth"
	"github.com/taskchat/taskchat/engine/infra/server/middleware/ratelimit"
	"github.com/taskchat/taskchat/engine/infra/server/middleware/size"
	"github.com/taskchat/taskchat/engine/infra/server/routes"
	"github.com/taskchat/taskchat/pkg/logger"
	"github.com/taskchat/taskchat/pkg/version"
)

func (s *Server) buildRouter(state *appstate.State) error {
	log := logger.FromContext(s.ctx)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware(log))
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.Use(s.monitoring.GinMiddleware(s.ctx))
		r.GET(s.monitoring.Path(), gin.WrapH(s.monitoring.ExporterHandler()))
	}
	r.Use(LoggerMiddleware())
	if len(s.config.Server.CORSAllowedOrigins) > 0 {
		r.Use(CORSMiddleware(s.config.Server.CORSAllowedOrigins))
	}
	r.Use(appstate.StateMiddleware(state))
	r.GET(routes.Health(), CreateHealthHandler())
	r.GET(routes.Ready(), CreateReadyHandler(s.store))

	verifier, err := s.setupVerifier()
	if err != nil {
		return err
	}
	authManager := authmw.NewManager(verifier)
	if s.metrics != nil {
		authManager = authManager.WithMetrics(s.metrics)
	}
	api := r.Group(routes.Base())
	if s.config.Server.BodyLimit > 0 {
		api.Use(size.BodyLimit(s.config.Server.BodyLimit))
	}
	api.Use(authManager.Middleware())
	if s.config.RateLimit.Enabled {
		limiter, err := s.setupRateLimiter()
		if err != nil {
			return err
		}
		api.Use(limiter.Middleware())
	}
	chatrouter.Register(api)
	s.router = r
	return nil
}

func (s *Server) setupRateLimiter() (*ratelimit.Manager, error) {
	cfg := ratelimit.FromAppConfig(&s.config.RateLimit)
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		if err := ratelimit.InitMetrics(s.monitoring.Meter()); err != nil {
			logger.FromContext(s.ctx).Error("Failed to initialize rate limit metrics", "error", err)
		}
	}
	manager, err := ratelimit.NewManager(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiting: %w", err)
	}
	s.addCleanup(func() {
		if err := manager.Close(); err != nil {
			logger.FromContext(s.ctx).Error("Failed to close rate limiter", "error", err)
		}
	})
	driver := "memory"
	if cfg.RedisAddr != "" {
		driver = "redis"
	}
	logger.FromContext(s.ctx).Info("Rate limiter initialized",
		"driver", driver,
		"limit", cfg.Rate.Limit,
		"period", cfg.Rate.Period,
	)
	return manager, nil
}

func (s *Server) logStartupBanner() {
	httpURL := fmt.Sprintf("http://%s:%d", friendlyHost(s.config.Server.Host), s.config.Server.Port)
	lines := []string{
		fmt.Sprintf("Taskchat %s", version.Get().Version),
		fmt.Sprintf("  Chat          > %s%s", httpURL, routes.Chat()),
		fmt.Sprintf("  Health        > %s%s", httpURL, routes.Health()),
		fmt.Sprintf("  Ready         > %s%s", httpURL, routes.Ready()),
	}
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		lines = append(lines, fmt.Sprintf("  Metrics       > %s%s", httpURL, s.monitoring.Path()))
	}
	logger.FromContext(s.ctx).Info("\n" + strings.Join(lines, "\n"))
}

func friendlyHost(h string) string {
	if h == hostAny || h == "::" || h == "" {
		return hostLoopback
	}
	return h
}
