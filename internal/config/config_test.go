package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDevConfig() *Config {
	return &Config{
		JWTSecret: "dev-secret",
		Port:      "8480",
		Env:       "development",
	}
}

func TestValidate_Development(t *testing.T) {
	t.Parallel()
	require.NoError(t, validDevConfig().Validate())
}

func TestValidate_MissingRequired(t *testing.T) {
	t.Parallel()

	cfg := validDevConfig()
	cfg.Port = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")

	cfg = validDevConfig()
	cfg.JWTSecret = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidate_ProductionChecks(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			JWTSecret:  strings.Repeat("s", 32),
			Port:       "8480",
			Env:        "production",
			DBPassword: "an-actual-strong-password",
			DBSSLMode:  "require",
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.JWTSecret = "your-secret-key-change-in-production"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default value")

	cfg = base()
	cfg.JWTSecret = "too-short"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 characters")

	cfg = base()
	cfg.DBPassword = "password"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")

	// "prod" is treated as production too.
	cfg = base()
	cfg.Env = "prod"
	cfg.DBPassword = ""
	require.Error(t, cfg.Validate())
}
