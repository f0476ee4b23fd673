package start

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/taskchat/taskchat/cli/helpers"
	"github.com/taskchat/taskchat/engine/infra/server"
	"github.com/taskchat/taskchat/pkg/config"
	"github.com/taskchat/taskchat/pkg/logger"
)

const (
	disableSSLMode = "disable"
	localhost      = "localhost"
)

// NewStartCommand creates the start command for the HTTP server.
func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"server"},
		Short:   "Start the taskchat server",
		RunE:    executeStartCommand,
	}
	cmd.Flags().String("host", "", "Host interface to bind")
	cmd.Flags().Int("port", 0, "Port to listen on")
	cmd.Flags().Int("max-tool-rounds", 0, "Maximum tool rounds per chat turn")
	cmd.Flags().Bool("debug", false, "Run gin in debug mode")
	return cmd
}

func executeStartCommand(cobraCmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cobraCmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return fmt.Errorf("configuration missing from context; attach a manager with config.ContextWithManager")
	}
	debug, err := cobraCmd.Flags().GetBool("debug")
	if err != nil {
		return fmt.Errorf("failed to get debug flag: %w", err)
	}
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.FromContext(ctx).Info("Starting taskchat server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
	)
	logSecurityWarnings(ctx, cfg)
	if err := helpers.CheckListenAddress(ctx, &cfg.Server); err != nil {
		return err
	}
	srv, err := server.NewServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Run()
}

// logSecurityWarnings warns about settings that are unsafe outside local runs.
func logSecurityWarnings(ctx context.Context, cfg *config.Config) {
	log := logger.FromContext(ctx)
	if cfg.Auth.Issuer == "" {
		log.Warn("Token issuer is not pinned; any issuer signed with the shared secret is accepted")
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.SSLMode == disableSSLMode {
		log.Warn("Database SSL is disabled", "hint", "set database.ssl_mode=require")
	}
	for _, origin := range cfg.Server.CORSAllowedOrigins {
		if strings.Contains(origin, localhost) || origin == "*" {
			log.Warn("CORS allows a development origin", "origin", origin)
			break
		}
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.Limit == 0 {
		log.Warn("Rate limiting is disabled")
	}
	if cfg.LLM.Provider == "mock" {
		log.Warn("Using the offline mock completion provider")
	}
}
