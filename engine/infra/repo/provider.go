package repo

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/infra/postgres"
	"github.com/taskchat/taskchat/engine/infra/sqlite"
	"github.com/taskchat/taskchat/engine/item"
	appconfig "github.com/taskchat/taskchat/pkg/config"
	"github.com/taskchat/taskchat/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Provider exposes repositories required by the application, backed by the
// configured driver. It returns interfaces rather than driver-specific types.
type Provider struct {
	driver       string
	conversation conversation.Repository
	item         item.Repository
	healthCheck  func(context.Context) error
	close        func(context.Context) error
}

// NewProvider opens the configured store, optionally applies migrations, and wires the repositories.
func NewProvider(ctx context.Context, cfg *appconfig.DatabaseConfig, reg prometheus.Registerer) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("repo: database config is required")
	}
	log := logger.FromContext(ctx)
	switch cfg.Driver {
	case DriverPostgres:
		pgCfg := PostgresConfig(cfg)
		if cfg.AutoMigrate {
			if err := postgres.ApplyMigrationsWithLock(ctx, pgCfg.DSN()); err != nil {
				return nil, err
			}
			log.Info("Database migrations applied", "store_driver", DriverPostgres)
		}
		store, err := postgres.NewStore(ctx, pgCfg, reg)
		if err != nil {
			return nil, err
		}
		pool := store.Pool()
		return &Provider{
			driver:       DriverPostgres,
			conversation: postgres.NewConversationRepo(pool),
			item:         postgres.NewItemRepo(pool),
			healthCheck:  store.HealthCheck,
			close:        store.Close,
		}, nil
	case DriverSQLite, "":
		store, err := sqlite.NewStore(ctx, SQLiteConfig(cfg))
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := sqlite.ApplyMigrations(ctx, store.DB()); err != nil {
				_ = store.Close(ctx)
				return nil, err
			}
			log.Info("Database migrations applied", "store_driver", DriverSQLite)
		}
		db := store.DB()
		return &Provider{
			driver:       DriverSQLite,
			conversation: sqlite.NewConversationRepo(db),
			item:         sqlite.NewItemRepo(db),
			healthCheck:  store.HealthCheck,
			close:        store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("repo: unsupported database driver %q", cfg.Driver)
	}
}

// PostgresConfig maps application settings onto the postgres driver config.
func PostgresConfig(cfg *appconfig.DatabaseConfig) *postgres.Config {
	return &postgres.Config{
		ConnString:   cfg.ConnString,
		Host:         cfg.Host,
		Port:         cfg.Port,
		User:         cfg.User,
		Password:     cfg.Password.Value(),
		DBName:       cfg.DBName,
		SSLMode:      cfg.SSLMode,
		MaxOpenConns: cfg.MaxOpenConns,
	}
}

// SQLiteConfig maps application settings onto the sqlite driver config.
func SQLiteConfig(cfg *appconfig.DatabaseConfig) *sqlite.Config {
	return &sqlite.Config{Path: cfg.SQLitePath, MaxOpenConns: cfg.MaxOpenConns}
}

func (p *Provider) Driver() string { return p.driver }

// NewConversationRepo returns the conversation repository.
func (p *Provider) NewConversationRepo() conversation.Repository { return p.conversation }

// NewItemRepo returns the item repository.
func (p *Provider) NewItemRepo() item.Repository { return p.item }

func (p *Provider) HealthCheck(ctx context.Context) error { return p.healthCheck(ctx) }

func (p *Provider) Close(ctx context.Context) error { return p.close(ctx) }
