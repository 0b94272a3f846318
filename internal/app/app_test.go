package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahmudulhsn/shopping-cart/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.HTTPPort = 0
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewApp_MemoryStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageType = config.StorageMemory

	a, err := NewApp(cfg, testLogger())
	require.NoError(t, err)
	assert.Nil(t, a.rdb)
	assert.Nil(t, a.pool)
	assert.Nil(t, a.purger)
	assert.Empty(t, a.consumers)
	assert.NoError(t, a.Shutdown())
}

func TestNewApp_RedisStorageWithLogoutConsumer(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.StorageType = config.StorageSession
	cfg.RedisAddr = mr.Addr()
	cfg.DestroyOnLogout = true

	a, err := NewApp(cfg, testLogger())
	require.NoError(t, err)
	require.NotNil(t, a.rdb)
	assert.Len(t, a.consumers, 1)
	assert.NoError(t, a.Shutdown())
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageType = config.StorageMemory

	a, err := NewApp(cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
