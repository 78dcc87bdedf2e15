package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/parley/store"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, store.TypeMemory, cfg.Store.Type)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/nonexistent/parley/config.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9000"
  read_timeout: 60s
  cors_origins:
    - "https://app.example"

engine:
  max_parallel: 4
  dispatch_timeout: 45s

gateway:
  base_url: "https://gateway.internal/v1/chat/completions"
  api_key: "sk-test"

store:
  type: file
  base_dir: "/var/lib/parley"

log:
  level: debug
  format: console

telemetry:
  enabled: true
  otlp_endpoint: "collector:4317"
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://app.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 4, cfg.Engine.MaxParallel)
	assert.Equal(t, 45*time.Second, cfg.Engine.DispatchTimeout)
	assert.Equal(t, "https://gateway.internal/v1/chat/completions", cfg.Gateway.BaseURL)
	assert.Equal(t, "sk-test", cfg.Gateway.APIKey)
	assert.Equal(t, store.TypeFile, cfg.Store.Type)
	assert.Equal(t, "/var/lib/parley", cfg.Store.BaseDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)

	// Values the file does not mention keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 256, cfg.Engine.EventBuffer)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":7000"
log:
  level: debug
`)
	t.Setenv("PARLEY_SERVER_ADDR", ":7111")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":7111", cfg.Server.Addr)
	// File values without env overrides survive.
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_EnvParsesTypedFields(t *testing.T) {
	t.Setenv("PARLEY_SERVER_READ_TIMEOUT", "45s")
	t.Setenv("PARLEY_SERVER_RATE_LIMIT_RPS", "12.5")
	t.Setenv("PARLEY_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PARLEY_LOG_ENABLE_CALLER", "false")
	t.Setenv("PARLEY_STORE_DATABASE_MAX_OPEN_CONNS", "50")
	t.Setenv("PARLEY_GATEWAY_TIMEOUT", "90s")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 12.5, cfg.Server.RateLimitRPS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Log.EnableCaller)
	assert.Equal(t, 50, cfg.Store.Database.MaxOpenConns)
	assert.Equal(t, 90*time.Second, cfg.Gateway.Timeout)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_ADDR", ":6666")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, ":6666", cfg.Server.Addr)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("PARLEY_SERVER_MAX_CONNS", "banana")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARLEY_SERVER_MAX_CONNS")
}

func TestLoader_BuiltinValidatorRejects(t *testing.T) {
	t.Setenv("PARLEY_LOG_LEVEL", "verbose")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestLoader_CustomValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return assert.AnError }).
		Load()
	require.ErrorIs(t, err, assert.AnError)
}

func TestLoader_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not: a: mapping")

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestMustLoad_PanicsOnMalformedFile(t *testing.T) {
	path := writeConfigFile(t, "server: [not: a: mapping")
	assert.Panics(t, func() { MustLoad(path) })
}
