// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theredstring/bridge/internal/logging"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, logging.LevelDebug, logging.ParseLevel("debug"))
	require.Equal(t, logging.LevelWarn, logging.ParseLevel("WARN"))
	require.Equal(t, logging.LevelError, logging.ParseLevel("error"))
	require.Equal(t, logging.LevelInfo, logging.ParseLevel("nonsense"))
}

func TestNewWithFileSinkCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	l, err := logging.New(logging.Config{Level: logging.LevelInfo, Service: "bridge-test", LogDir: dir, Quiet: true})
	require.NoError(t, err)
	defer l.Close()

	l.Info("hello", "key", "value")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
	require.Contains(t, string(data), "bridge-test")
}

func TestWithAddsAttributes(t *testing.T) {
	l := logging.Default()
	child := l.With("cid", "abc-123")
	require.NotNil(t, child)
}

func TestDefaultDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		l := logging.Default()
		l.Debug("quiet")
		l.Warn("loud")
	})
}
