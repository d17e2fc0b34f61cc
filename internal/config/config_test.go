// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theredstring/bridge/internal/config"
)

func TestParseTrustProxy(t *testing.T) {
	require.Equal(t, config.TrustProxy{}, config.ParseTrustProxy(""))
	require.Equal(t, config.TrustProxy{}, config.ParseTrustProxy("false"))
	require.Equal(t, config.TrustProxy{All: true}, config.ParseTrustProxy("true"))
	require.Equal(t, config.TrustProxy{Hops: 2}, config.ParseTrustProxy("2"))
	require.Equal(t, config.TrustProxy{Rules: []string{"10.0.0.0/8", "192.168.0.0/16"}},
		config.ParseTrustProxy("10.0.0.0/8,192.168.0.0/16"))
}

func TestLoadDefaultsPort(t *testing.T) {
	require.NoError(t, os.Unsetenv("BRIDGE_PORT"))
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 3001, cfg.Port)
}

func TestLoadRejectsHTTPSWithoutCertMaterial(t *testing.T) {
	t.Setenv("MCP_USE_HTTPS", "true")
	require.NoError(t, os.Unsetenv("MCP_SSL_KEY_PATH"))
	require.NoError(t, os.Unsetenv("MCP_SSL_CERT_PATH"))
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadYAMLMissingFileIsNotAnError(t *testing.T) {
	var out map[string]any
	require.NoError(t, config.LoadYAML("/nonexistent/path.yaml", &out))
}

func TestWatchTLSNilWhenDisabled(t *testing.T) {
	w, err := config.WatchTLS(config.TLS{Enabled: false}, func() {})
	require.NoError(t, err)
	require.Nil(t, w)
	require.NoError(t, w.Close())
}
