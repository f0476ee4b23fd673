package mcp

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/taskchat/taskchat/engine/infra/repo"
	"github.com/taskchat/taskchat/engine/item"
	"github.com/taskchat/taskchat/engine/tool"
	"github.com/taskchat/taskchat/pkg/config"
	"github.com/taskchat/taskchat/pkg/logger"
	"github.com/taskchat/taskchat/pkg/version"
)

// NewMCPCommand serves the item tools over MCP stdio for a single user.
func NewMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the todo tools over the Model Context Protocol (stdio)",
		RunE:  executeMCPCommand,
	}
	cmd.Flags().String("user", "", "User id every tool call is scoped to")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func executeMCPCommand(cobraCmd *cobra.Command, _ []string) error {
	userID, err := cobraCmd.Flags().GetString("user")
	if err != nil {
		return fmt.Errorf("failed to get user flag: %w", err)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("--user must not be empty")
	}
	ctx := stderrLogger(cobraCmd)
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return fmt.Errorf("configuration missing from context")
	}
	provider, err := repo.NewProvider(ctx, &cfg.Database, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Error("Failed to close store", "error", err)
		}
	}()
	registry, err := tool.NewRegistry(item.NewService(provider.NewItemRepo()))
	if err != nil {
		return err
	}
	mcpServer, err := tool.NewMCPServer(registry, userID, version.Get().Version)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Serving MCP over stdio", "user_id", userID, "tools", len(registry.Tools()))
	return server.ServeStdio(mcpServer)
}

// stderrLogger keeps stdout free for protocol frames.
func stderrLogger(cobraCmd *cobra.Command) context.Context {
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cobraCmd)
	if err != nil {
		logLevel = "info"
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(logLevel),
		Output:     os.Stderr,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
	logger.SetDefault(log)
	return logger.ContextWithLogger(cobraCmd.Context(), log)
}
