package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8084, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, 30, cfg.AI.TimeoutSeconds)
	assert.True(t, cfg.Monitoring.Enabled)
	assert.True(t, cfg.Seed.Demo)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestEnvOverrides(t *testing.T) {
	os.Setenv("PORT", "9100")
	os.Setenv("GEMINI_API_KEY", "test-key")
	os.Setenv("LOG_LEVEL", "debug")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("GEMINI_API_KEY")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "test-key", cfg.AI.APIKey)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	err := validate(&Config{
		Server:  ServerConfig{Port: 0},
		Storage: StorageConfig{Driver: "memory"},
		AI:      AIConfig{TimeoutSeconds: 30},
	})
	assert.Error(t, err)

	err = validate(&Config{
		Server:  ServerConfig{Port: 8084},
		Storage: StorageConfig{Driver: "cassandra"},
		AI:      AIConfig{TimeoutSeconds: 30},
	})
	assert.Error(t, err)

	err = validate(&Config{
		Server:  ServerConfig{Port: 8084},
		Storage: StorageConfig{Driver: "memory"},
		AI:      AIConfig{TimeoutSeconds: 0},
	})
	assert.Error(t, err)

	err = validate(&Config{
		Server:  ServerConfig{Port: 8084},
		Storage: StorageConfig{Driver: "memory"},
		AI:      AIConfig{TimeoutSeconds: 30},
	})
	assert.NoError(t, err)
}
