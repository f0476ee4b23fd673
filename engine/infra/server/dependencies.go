package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskchat/taskchat/engine/agent"
	"github.com/taskchat/taskchat/engine/auth"
	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/infra/monitoring"
	"github.com/taskchat/taskchat/engine/infra/repo"
	"github.com/taskchat/taskchat/engine/infra/server/appstate"
	"github.com/taskchat/taskchat/engine/item"
	llmadapter "github.com/taskchat/taskchat/engine/llm/adapter"
	"github.com/taskchat/taskchat/engine/tool"
	"github.com/taskchat/taskchat/pkg/logger"
)

const monitoringShutdownTimeout = 5 * time.Second

func (s *Server) setupMonitoring() {
	log := logger.FromContext(s.ctx)
	cfg := monitoring.FromAppConfig(&s.config.Monitoring)
	s.monitoring = monitoring.NewMonitoringServiceWithFallback(s.ctx, cfg)
	if !s.monitoring.IsInitialized() {
		log.Info("Monitoring is disabled", "enabled", cfg.Enabled)
		return
	}
	service := s.monitoring
	s.addCleanup(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), monitoringShutdownTimeout)
		defer cancel()
		if err := service.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown monitoring service", "error", err)
		}
	})
}

func (s *Server) setupStore() (*repo.Provider, error) {
	start := time.Now()
	provider, err := repo.NewProvider(s.ctx, &s.config.Database, s.monitoring.Registerer())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	s.addCleanup(func() {
		if err := provider.Close(context.WithoutCancel(s.ctx)); err != nil {
			logger.FromContext(s.ctx).Error("Failed to close store", "error", err)
		}
	})
	s.store = provider
	s.logDatabaseStartup(provider.Driver(), time.Since(start))
	return provider, nil
}

func (s *Server) logDatabaseStartup(driver string, duration time.Duration) {
	fields := []any{"driver", driver, "duration", duration}
	switch driver {
	case repo.DriverSQLite:
		fields = append(fields, "path", s.config.Database.SQLitePath, "mode", sqliteMode(s.config.Database.SQLitePath))
	case repo.DriverPostgres:
		fields = append(fields,
			"host", s.config.Database.Host,
			"port", s.config.Database.Port,
			"database", s.config.Database.DBName,
		)
	}
	logger.FromContext(s.ctx).Info("Database store initialized", fields...)
}

func sqliteMode(path string) string {
	lowered := strings.ToLower(strings.TrimSpace(path))
	if lowered == "" {
		return "unknown"
	}
	if lowered == ":memory:" || strings.HasPrefix(lowered, "file::memory:") ||
		strings.Contains(lowered, "mode=memory") {
		return "in-memory"
	}
	return "file-based"
}

func (s *Server) setupLLM() (llmadapter.LLMClient, error) {
	client, err := llmadapter.NewClient(s.ctx, llmadapter.ProviderConfigFromConfig(&s.config.LLM))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion client: %w", err)
	}
	s.addCleanup(func() {
		if err := client.Close(); err != nil {
			logger.FromContext(s.ctx).Error("Failed to close completion client", "error", err)
		}
	})
	logger.FromContext(s.ctx).Info("Completion client initialized",
		"provider", s.config.LLM.Provider,
		"model", s.config.LLM.Model,
	)
	return client, nil
}

func (s *Server) setupDependencies() (*appstate.State, error) {
	start := time.Now()
	s.setupMonitoring()
	provider, err := s.setupStore()
	if err != nil {
		return nil, err
	}
	client, err := s.setupLLM()
	if err != nil {
		return nil, err
	}
	convs := conversation.NewStore(
		provider.NewConversationRepo(),
		conversation.WithMaxContentLength(s.config.Agent.MaxMessageLength),
	)
	registry, err := tool.NewRegistry(item.NewService(provider.NewItemRepo()))
	if err != nil {
		return nil, err
	}
	dispatcher, err := agent.NewDispatcher(
		convs,
		registry,
		client,
		agent.ConfigFrom(s.config),
		agent.WithObserver(s.agentMetrics()),
	)
	if err != nil {
		return nil, err
	}
	state, err := appstate.NewState(appstate.NewBaseDeps(provider, convs, dispatcher))
	if err != nil {
		return nil, err
	}
	logger.FromContext(s.ctx).Info("Dependencies initialized",
		"tools", strings.Join(registry.Names(), ","),
		"duration", time.Since(start),
	)
	return state, nil
}

func (s *Server) agentMetrics() agent.Observer {
	if s.monitoring == nil || !s.monitoring.IsInitialized() {
		return nil
	}
	if s.metrics == nil {
		s.metrics = s.monitoring.AgentMetrics(s.ctx)
	}
	return s.metrics
}

func (s *Server) setupVerifier() (*auth.Verifier, error) {
	verifier, err := auth.NewVerifier(&s.config.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	return verifier, nil
}
