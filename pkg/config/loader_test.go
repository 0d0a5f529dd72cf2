package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/config"
)

type testConfig struct {
	Name     string        `env:"CFGTEST_NAME" envDefault:"default_value"`
	Count    int           `env:"CFGTEST_COUNT" envDefault:"42"`
	Interval time.Duration `env:"CFGTEST_INTERVAL" envDefault:"1s"`
}

type requiredConfig struct {
	Required string `env:"CFGTEST_REQUIRED,required"`
}

type prefixedConfig struct {
	Value string `env:"VALUE"`
}

type fileConfig struct {
	FromFile string `env:"CFGTEST_FROM_FILE"`
}

func TestLoad_Success(t *testing.T) {
	t.Setenv("CFGTEST_NAME", "custom")
	t.Setenv("CFGTEST_COUNT", "7")
	t.Setenv("CFGTEST_INTERVAL", "250ms")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "custom", cfg.Name)
	assert.Equal(t, 7, cfg.Count)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
}

func TestLoad_ReadsEnvironmentOnEveryCall(t *testing.T) {
	t.Setenv("CFGTEST_NAME", "first")

	var first testConfig
	require.NoError(t, config.Load(&first))
	assert.Equal(t, "first", first.Name)

	t.Setenv("CFGTEST_NAME", "second")

	var second testConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "second", second.Name)
}

func TestLoad_DefaultValues(t *testing.T) {
	os.Unsetenv("CFGTEST_NAME")
	os.Unsetenv("CFGTEST_COUNT")
	os.Unsetenv("CFGTEST_INTERVAL")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "default_value", cfg.Name)
	assert.Equal(t, 42, cfg.Count)
	assert.Equal(t, time.Second, cfg.Interval)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("CFGTEST_REQUIRED")

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *testConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestLoad_WithPrefix(t *testing.T) {
	t.Setenv("CFGTEST_PREFIX_VALUE", "prefixed")

	var cfg prefixedConfig
	require.NoError(t, config.Load(&cfg, config.WithPrefix("CFGTEST_PREFIX_")))
	assert.Equal(t, "prefixed", cfg.Value)
}

func TestLoad_WithEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CFGTEST_FROM_FILE=from_file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CFGTEST_FROM_FILE") })

	var cfg fileConfig
	require.NoError(t, config.Load(&cfg, config.WithEnvFiles(filepath.Join(dir, "missing.env"), path)))
	assert.Equal(t, "from_file", cfg.FromFile)
}

func TestMustLoad(t *testing.T) {
	os.Unsetenv("CFGTEST_REQUIRED")

	var cfg requiredConfig
	assert.Panics(t, func() {
		config.MustLoad(&cfg)
	})
}
