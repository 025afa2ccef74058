package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "8787", cfg.ListenPort)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "failingCountries", cfg.Store.Key)
	assert.Equal(t, 5, cfg.Store.MaxRetries)
	assert.Equal(t, "CF-IPCountry", cfg.Geo.Header)
	assert.Equal(t, "/", cfg.Panel.FormAction)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
listen_port: "9000"
store:
  backend: redis
  redis_addr: redis:6379
  key: outages
seed:
  failing_countries:
    CA: 500
geo:
  header: X-Country
  default_country: us
panel:
  form_action: https://example.workers.dev
  countries:
    - code: DE
      flag: "🇩🇪"
tracing:
  enabled: true
  endpoint: collector:4318
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.ListenPort)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "outages", cfg.Store.Key)
	// viper lowercases map keys
	assert.Equal(t, map[string]string{"ca": "500"}, cfg.Seed.FailingCountries)
	assert.Equal(t, "X-Country", cfg.Geo.Header)
	assert.Equal(t, "us", cfg.Geo.DefaultCountry)
	assert.Equal(t, "https://example.workers.dev", cfg.Panel.FormAction)
	require.Len(t, cfg.Panel.Countries, 1)
	assert.Equal(t, PanelCountry{Code: "DE", Flag: "🇩🇪"}, cfg.Panel.Countries[0])
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "listen_port: \"9000\"\nstore:\n  backend: file\n")
	t.Setenv("COLOFAIL_LISTEN_PORT", "9100")
	t.Setenv("COLOFAIL_STORE_BACKEND", "memory")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.ListenPort)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "listen_port: \"9000\"\nlogging:\n  level: info\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("listen-port", "8787", "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--listen-port", "7000", "--log-level", "debug"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.ListenPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
