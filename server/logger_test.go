package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLoggerWritesFile(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop().Sugar() })
	path := filepath.Join(t.TempDir(), "table.log")

	require.NoError(t, InitLogger(LogConfig{File: path, MaxSizeMB: 1, Level: "info"}))
	Log.Debugw("hidden below level")
	Log.Infow("player joined", "slot", 3)
	SyncLogger()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "player joined")
	assert.Contains(t, string(data), "slot")
	assert.NotContains(t, string(data), "hidden below level")
}

func TestInitLoggerBadLevel(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop().Sugar() })
	assert.Error(t, InitLogger(LogConfig{Level: "chatty"}))
}
