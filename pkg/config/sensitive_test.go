package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func configWithSecrets() *Config {
	cfg := Default()
	cfg.Database.Password = "pg-pass-71"
	cfg.LLM.APIKey = "sk-live-abc123"
	cfg.Auth.JWTSecret = "hs256-shared-secret"
	return cfg
}

var secrets = []string{"pg-pass-71", "sk-live-abc123", "hs256-shared-secret"}

func TestSensitiveString(t *testing.T) {
	t.Run("Should keep secrets out of the JSON config dump", func(t *testing.T) {
		data, err := json.Marshal(configWithSecrets())
		require.NoError(t, err)
		for _, secret := range secrets {
			assert.NotContains(t, string(data), secret)
		}
		assert.Contains(t, string(data), redacted)
	})
	t.Run("Should keep secrets out of the YAML config dump", func(t *testing.T) {
		data, err := yaml.Marshal(configWithSecrets())
		require.NoError(t, err)
		for _, secret := range secrets {
			assert.NotContains(t, string(data), secret)
		}
	})
	t.Run("Should redact when formatted into log lines", func(t *testing.T) {
		cfg := configWithSecrets()
		line := fmt.Sprintf("api_key=%v secret=%s", cfg.LLM.APIKey, cfg.Auth.JWTSecret)
		assert.Equal(t, "api_key=[REDACTED] secret=[REDACTED]", line)
	})
	t.Run("Should print unset secrets as empty", func(t *testing.T) {
		assert.Empty(t, Default().LLM.APIKey.String())
	})
	t.Run("Should hand the clear value to the components that need it", func(t *testing.T) {
		cfg := configWithSecrets()
		assert.Equal(t, "hs256-shared-secret", cfg.Auth.JWTSecret.Value())
	})
}
