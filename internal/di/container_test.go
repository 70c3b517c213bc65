package di

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inesosoares6/shopping-list-v2/internal/config"
	"github.com/inesosoares6/shopping-list-v2/internal/di/providers"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Logger.Level = "error"
	cfg.Store.Backend = "memory"
	cfg.Store.DataPath = t.TempDir()
	cfg.Server.Port = "0"
	cfg.Client.TokenFile = filepath.Join(t.TempDir(), "token.json")
	return cfg
}

// startServer boots a server container and returns its base URL.
func startServer(t *testing.T) (string, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	injector := NewServerContainer(cfg)
	require.NoError(t, BootstrapServer(injector))
	t.Cleanup(func() { _ = injector.Shutdown() })

	srv := do.MustInvoke[*providers.HTTPServerHandle](injector)
	port := srv.Bound.(*net.TCPAddr).Port
	return fmt.Sprintf("http://127.0.0.1:%d", port), cfg
}

func TestServerContainer(t *testing.T) {
	base, cfg := startServer(t)

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = os.Stat(filepath.Join(cfg.Store.DataPath, "auth.key"))
	assert.NoError(t, err, "auth key should be generated in the data directory")
}

func TestServerContainer_ConfiguredKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.KeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	injector := NewServerContainer(cfg)
	t.Cleanup(func() { _ = injector.Shutdown() })

	key, err := do.Invoke[providers.AuthKey](injector)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = os.Stat(filepath.Join(cfg.Store.DataPath, "auth.key"))
	assert.True(t, os.IsNotExist(err))
}

func TestServerContainer_BadKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.KeyHex = "abcd"
	injector := NewServerContainer(cfg)
	t.Cleanup(func() { _ = injector.Shutdown() })

	assert.Error(t, BootstrapServer(injector))
}

func TestClientContainer_SessionAgainstServer(t *testing.T) {
	base, _ := startServer(t)

	cfg := testConfig(t)
	cfg.Client.ServerURL = base
	injector := NewClientContainer(cfg)
	t.Cleanup(func() { _ = injector.Shutdown() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := do.MustInvoke[*providers.SessionHandle](injector)
	ident, err := s.Register(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, ident.UID)

	listID, err := s.Settings.SelectList(ctx, "Groceries")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return s.Catalog.ListID() == listID && s.Settings.ListName() == "Groceries"
	}, 5*time.Second, 20*time.Millisecond)

	_, err = os.Stat(cfg.Client.TokenFile)
	assert.NoError(t, err, "login should be saved to the token file")
}
