package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	configcmd "github.com/taskchat/taskchat/cli/cmd/config"
	"github.com/taskchat/taskchat/cli/cmd/mcp"
	"github.com/taskchat/taskchat/cli/cmd/migrate"
	"github.com/taskchat/taskchat/cli/cmd/start"
	"github.com/taskchat/taskchat/cli/cmd/token"
	"github.com/taskchat/taskchat/pkg/config"
	"github.com/taskchat/taskchat/pkg/logger"
	"github.com/taskchat/taskchat/pkg/version"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskchat",
		Short:         "Taskchat conversational todo agent",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a YAML configuration file")
	pf.String("env-file", ".env", "Path to an environment file")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Bool("log-json", false, "Emit logs as JSON")
	pf.Bool("log-source", false, "Include source locations in logs")
	pf.String("db-driver", "", "Database driver (postgres or sqlite)")
	pf.String("db-conn-string", "", "Postgres connection string")
	pf.String("sqlite-path", "", "SQLite database path")
	pf.String("llm-provider", "", "Completion provider")
	pf.String("llm-model", "", "Completion model")

	root.AddCommand(
		start.NewStartCommand(),
		migrate.NewMigrateCommand(),
		mcp.NewMCPCommand(),
		token.NewTokenCommand(),
		configcmd.NewConfigCommand(),
	)
	return root
}

// SetupGlobalConfig loads the env file, builds the logger and attaches the
// configuration manager to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	// Merges persistent flags into Flags() when called outside Execute.
	if err := cmd.ParseFlags(nil); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(logLevel, logJSON, logSource)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, log)

	sources := []config.Source{config.NewEnvProvider()}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return fmt.Errorf("config file %s: %w", configFile, err)
		}
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	flags := make(map[string]any)
	extractCLIFlags(cmd, flags)
	if len(flags) > 0 {
		sources = append(sources, config.NewCLIProvider(flags))
	}
	manager := config.NewManager(config.NewService())
	if _, err := manager.Load(ctx, sources...); err != nil {
		return err
	}
	cmd.SetContext(config.ContextWithManager(ctx, manager))
	return nil
}
