package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port        int      `env:"TEST_CFG_PORT" envDefault:"8080"`
	StorageType string   `env:"TEST_CFG_STORAGE" envDefault:"session"`
	Brokers     []string `env:"TEST_CFG_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Destroy     bool     `env:"TEST_CFG_DESTROY" envDefault:"false"`
}

type validatedConfig struct {
	TaxRate float64 `env:"TEST_CFG_TAX" envDefault:"15"`
}

func (c *validatedConfig) Validate() error {
	if c.TaxRate < 0 || c.TaxRate > 100 {
		return errors.New("tax rate out of range")
	}
	return nil
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "session", cfg.StorageType)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.False(t, cfg.Destroy)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_STORAGE", "database")
	t.Setenv("TEST_CFG_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TEST_CFG_DESTROY", "true")

	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "database", cfg.StorageType)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.True(t, cfg.Destroy)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_RunsValidator(t *testing.T) {
	t.Setenv("TEST_CFG_TAX", "150")

	var cfg validatedConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
	assert.Contains(t, err.Error(), "tax rate out of range")
}

func TestLoad_ValidatorPasses(t *testing.T) {
	var cfg validatedConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 15.0, cfg.TaxRate)
}
