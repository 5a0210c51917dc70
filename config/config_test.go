package config_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"code.meridianprotocol.io/meridian/config"
	"code.meridianprotocol.io/meridian/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_saveReadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := config.NewDefaultConfig()
	cfg.Execution.Level.Level = logging.DebugLevel
	require.NoError(t, cfg.Save(dir))

	loaded, err := config.Read(dir)
	require.NoError(t, err)
	assert.Equal(t, logging.DebugLevel, loaded.Execution.Level.Level)
	assert.Equal(t, cfg.Execution.Matching.Level.Level, loaded.Execution.Matching.Level.Level)
}

func TestConfig_readMissingFile(t *testing.T) {
	_, err := config.Read(t.TempDir())
	assert.Error(t, err)
}

func TestWatcher_reloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, config.NewDefaultConfig().Save(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := config.NewFromFile(ctx, logging.NewTestLogger(), dir)
	require.NoError(t, err)
	assert.Equal(t, logging.InfoLevel, w.Get().Execution.Level.Level)

	var notified atomic.Bool
	w.OnConfigUpdate(func(cfg config.Config) {
		assert.Equal(t, logging.DebugLevel, cfg.Execution.Level.Level)
		notified.Store(true)
	})

	updated := config.NewDefaultConfig()
	updated.Execution.Level.Level = logging.DebugLevel
	require.NoError(t, updated.Save(dir))

	assert.Eventually(t, func() bool {
		w.OnTimeUpdate(ctx, time.Now())
		return notified.Load()
	}, 5*time.Second, 50*time.Millisecond)
}
