package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-shh/internal/config"
	"github.com/stretchr/testify/require"
)

func TestServiceAddress(t *testing.T) {
	cfg := config.New()
	require.Equal(t, "https://localhost", cfg.GetServiceAddress())

	cfg.Service.Port = "8443"
	cfg.Service.Path = "/shh/"
	require.Equal(t, "https://localhost:8443/shh", cfg.GetServiceAddress())
	require.Equal(t, "/shh", cfg.GetServicePath())
	require.Equal(t, "https://localhost:8443/shh/oidc/callback", cfg.GetOidcRedirectURI())
}

func TestMetricsDefaults(t *testing.T) {
	cfg := config.New()
	require.False(t, cfg.GetMetricsEnabled())
	require.Empty(t, cfg.GetMetricsPort())

	cfg.Metrics.Port = 9100
	require.Equal(t, ":9100", cfg.GetMetricsPort())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shh.toml")
	err := os.WriteFile(path, []byte(`
testing_mode = true

[service]
hostname = "secrets.example.com"

[oidc]
issuer = "https://id.example.com"
client_id = "from-file"

[shutdown]
sleep = "2s"
`), 0o600)
	require.NoError(t, err)

	t.Setenv("SHH_OIDC_CLIENT_ID", "from-env")
	t.Setenv("SHH_DATABASE_MAX_OPEN_CONNS", "5")

	cfg, err := config.Load(path, map[string]any{"server.port": 9090})
	require.NoError(t, err)

	require.True(t, cfg.GetTestingMode())
	require.Equal(t, "https://secrets.example.com", cfg.GetServiceAddress())
	require.Equal(t, "https://id.example.com", cfg.GetOidcIssuer())
	require.Equal(t, "from-env", cfg.GetOidcClientID())
	require.Equal(t, 5, cfg.GetDatabaseMaxOpenConns())
	require.Equal(t, 2*time.Second, cfg.GetShutdownSleep())
	require.Equal(t, 10*time.Second, cfg.GetShutdownWait())
	require.Equal(t, ":9090", cfg.GetPort())
}

func TestValidateServer(t *testing.T) {
	t.Run("missing oidc settings", func(t *testing.T) {
		cfg := config.New()
		err := cfg.ValidateServer()
		require.Error(t, err)
		require.Contains(t, err.Error(), "oidc.issuer is required")
		require.Contains(t, err.Error(), "oidc.token_endpoint is required")
	})

	t.Run("discovery skips endpoints", func(t *testing.T) {
		cfg := config.New()
		cfg.Oidc.Issuer = "https://id.example.com"
		cfg.Oidc.ClientID = "client"
		cfg.Oidc.ClientSecret = "secret"
		cfg.Oidc.Discover = true
		require.NoError(t, cfg.ValidateServer())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := config.New()
		cfg.Database.Driver = "mysql"
		require.ErrorContains(t, cfg.Validate(), "unsupported database driver")
	})
}
