package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/taskchat/taskchat/engine/auth"
	"github.com/taskchat/taskchat/pkg/config"
)

const defaultTTL = 24 * time.Hour

// NewTokenCommand mints a bearer token signed with the configured secret.
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user (development only)",
		RunE:  executeTokenCommand,
	}
	cmd.Flags().String("user", "", "User id placed in the token")
	cmd.Flags().Duration("ttl", defaultTTL, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func executeTokenCommand(cobraCmd *cobra.Command, _ []string) error {
	cfg := config.FromContext(cobraCmd.Context())
	if cfg == nil {
		return fmt.Errorf("configuration missing from context")
	}
	userID, err := cobraCmd.Flags().GetString("user")
	if err != nil {
		return fmt.Errorf("failed to get user flag: %w", err)
	}
	ttl, err := cobraCmd.Flags().GetDuration("ttl")
	if err != nil {
		return fmt.Errorf("failed to get ttl flag: %w", err)
	}
	verifier, err := auth.NewVerifier(&cfg.Auth)
	if err != nil {
		return err
	}
	raw, err := verifier.Issue(strings.TrimSpace(userID), ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cobraCmd.OutOrStdout(), raw)
	return err
}
