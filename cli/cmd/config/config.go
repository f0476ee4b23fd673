package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/cobra"
	"github.com/taskchat/taskchat/cli/helpers"
	"github.com/taskchat/taskchat/pkg/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration inspection",
	}
	cmd.AddCommand(
		NewConfigShowCommand(),
		NewConfigSourcesCommand(),
	)
	return cmd
}

// NewConfigShowCommand prints the effective configuration with secrets redacted.
func NewConfigShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration values",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cobraCmd.Context())
			if cfg == nil {
				return fmt.Errorf("configuration missing from context")
			}
			raw, err := cobraCmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			format, err := helpers.ParseFormat(raw)
			if err != nil {
				return err
			}
			data, err := configMap(cfg)
			if err != nil {
				return err
			}
			return helpers.WriteData(cobraCmd.OutOrStdout(), format, data)
		},
	}
	cmd.Flags().StringP("format", "f", string(helpers.FormatYAML), "Output format (json, yaml)")
	return cmd
}

// NewConfigSourcesCommand lists which source set each configuration key.
func NewConfigSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Show the source of every configuration key",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			ctx := cobraCmd.Context()
			manager := config.ManagerFromContext(ctx)
			cfg := config.FromContext(ctx)
			if manager == nil || cfg == nil {
				return fmt.Errorf("configuration missing from context")
			}
			data, err := configMap(cfg)
			if err != nil {
				return err
			}
			keys := flattenKeys("", data)
			sort.Strings(keys)
			out := cobraCmd.OutOrStdout()
			for _, key := range keys {
				fmt.Fprintf(out, "%-32s %s\n", key, manager.Service.GetSource(key))
			}
			return nil
		},
	}
}

// configMap renders cfg keyed by its koanf paths.
func configMap(cfg *config.Config) (map[string]any, error) {
	data, err := structs.Provider(cfg, "koanf").Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	humanizeDurations(data)
	return data, nil
}

func humanizeDurations(m map[string]any) {
	for k, v := range m {
		switch typed := v.(type) {
		case time.Duration:
			m[k] = typed.String()
		case map[string]any:
			humanizeDurations(typed)
		}
	}
}

func flattenKeys(prefix string, m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		path := k
		if prefix != "" {
			path = strings.Join([]string{prefix, k}, ".")
		}
		if nested, ok := v.(map[string]any); ok {
			keys = append(keys, flattenKeys(path, nested)...)
			continue
		}
		keys = append(keys, path)
	}
	return keys
}
