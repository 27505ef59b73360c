package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, defaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, 60*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, time.Hour, cfg.ResetSweepInterval)
	assert.Equal(t, 10, cfg.WorkerConcurrency)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.PaymentMockMode)
	assert.Equal(t, int32(0), cfg.DBMaxConns)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9000")
	t.Setenv("PROVIDER_TIMEOUT", "15s")
	t.Setenv("PAYMENT_MOCK_MODE", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("DB_MAX_CONNS", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.ProviderTimeout)
	assert.True(t, cfg.PaymentMockMode)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, int32(25), cfg.DBMaxConns)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nPORT=1111\nPROVIDER_API_KEY=pk\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("JWT_SECRET")
		_ = os.Unsetenv("PROVIDER_API_KEY")
	})

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "pk", cfg.ProviderAPIKey)
	assert.Equal(t, "7000", cfg.Port, "process environment wins over .env")
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing jwt secret":  {},
		"bad log level":       {"JWT_SECRET": "x", "LOG_LEVEL": "loud"},
		"zero timeout":        {"JWT_SECRET": "x", "PROVIDER_TIMEOUT": "0s"},
		"zero concurrency":    {"JWT_SECRET": "x", "WORKER_CONCURRENCY": "0"},
		"negative pool size":  {"JWT_SECRET": "x", "DB_MAX_CONNS": "-1"},
		"zero sweep interval": {"JWT_SECRET": "x", "RESET_SWEEP_INTERVAL": "0s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
