package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) Overrides {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	o := BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return o
}

func noEnvFile(t *testing.T, args ...string) Overrides {
	t.Helper()
	return parse(t, append([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)...)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.Server.Heartbeat)
	assert.Equal(t, 256, cfg.Server.StreamQueue)
	assert.Equal(t, 10*time.Second, cfg.Server.StreamSend)
	assert.Equal(t, 720*time.Hour, cfg.Auth.TokenDuration)
	assert.Equal(t, "http://localhost:8080", cfg.Client.ServerURL)
	assert.True(t, filepath.IsAbs(cfg.Store.DataPath))
	assert.Equal(t, "token.json", filepath.Base(cfg.Client.TokenFile))
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	// restored on cleanup after the .env file sets it
	t.Setenv("STORE_BACKEND", "")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`
# comment
SERVER_PORT=7000
STORE_BACKEND="sqlite"
`), 0o600))

	cfg, err := Load(parse(t, "-env-file", envFile, "-log-level", "warn"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logger.Level, "flag beats env")
	assert.Equal(t, "9000", cfg.Server.Port, "env beats .env")
	assert.Equal(t, "sqlite", cfg.Store.Backend, ".env beats default")
}

func TestLoad_ParsesListsAndPaths(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(noEnvFile(t,
		"-cors-origins", "https://a.example, https://b.example,",
		"-data-path", dir,
		"-server-url", "https://shop.example/",
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, filepath.Join(dir, "tree"), cfg.StorePath())
	assert.Equal(t, "https://shop.example", cfg.Client.ServerURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad duration", []string{"-read-timeout", "soon"}},
		{"bad int", []string{"-stream-queue", "many"}},
		{"bad env", []string{"-env", "test"}},
		{"bad backend", []string{"-store-backend", "postgres"}},
		{"bad port", []string{"-port", "99999"}},
		{"bad key", []string{"-auth-key", "abc"}},
		{"bad url", []string{"-server-url", "localhost:8080"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(noEnvFile(t, tt.args...))
			assert.Error(t, err)
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"INFO", true},
		{"trace", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Defaults()
			cfg.Logger.Level = tt.level
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_MemoryBackendNeedsNoPath(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Backend = "memory"
	cfg.Store.DataPath = ""
	assert.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.StorePath())

	cfg.Store.Backend = "badger"
	assert.Error(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/lists", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "lists"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)
}
