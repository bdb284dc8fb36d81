package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port      int           `env:"TEST_CFG_PORT" envDefault:"8080"`
	LogLevel  string        `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
	AccessTTL time.Duration `env:"TEST_CFG_ACCESS_TTL" envDefault:"15m"`
	Debug     bool          `env:"TEST_CFG_DEBUG" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.False(t, cfg.Debug)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_LOG_LEVEL", "debug")
	t.Setenv("TEST_CFG_ACCESS_TTL", "1h")
	t.Setenv("TEST_CFG_DEBUG", "true")

	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.True(t, cfg.Debug)
}

type requiredConfig struct {
	Secret string `env:"TEST_CFG_SECRET,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadWithPrefix(t *testing.T) {
	t.Setenv("AUTH_TEST_CFG_SECRET", "s3cret")

	var cfg requiredConfig
	require.NoError(t, LoadWithPrefix(&cfg, "AUTH_"))
	assert.Equal(t, "s3cret", cfg.Secret)
}

type validatedConfig struct {
	MinLength int `env:"TEST_CFG_MIN_LENGTH" envDefault:"8"`
}

func (c *validatedConfig) Validate() error {
	if c.MinLength < 1 {
		return errors.New("min length must be positive")
	}
	return nil
}

func TestLoad_RunsValidate(t *testing.T) {
	t.Setenv("TEST_CFG_MIN_LENGTH", "0")

	var cfg validatedConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
	assert.Contains(t, err.Error(), "min length must be positive")
}

func TestLoad_ValidatePasses(t *testing.T) {
	var cfg validatedConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 8, cfg.MinLength)
}
