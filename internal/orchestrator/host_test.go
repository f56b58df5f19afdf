package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints"
	cpredis "github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints/redis"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints/sqlite"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/config"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StoreBackend = backend
	cfg.StorePath = filepath.Join(dir, "state", "workflow-state.json")
	cfg.SQLitePath = filepath.Join(dir, "db", "workflow-state.db")
	cfg.ProjectRoot = dir
	return cfg
}

func TestHostOpensConfiguredBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		host := NewHost(testConfig(t, config.BackendMemory), log.Nop())
		cp, err := host.Checkpointer(ctx)
		require.NoError(t, err)
		assert.IsType(t, &checkpoints.MemoryStore{}, cp)
		assert.NoError(t, host.Flush(ctx))
		assert.NoError(t, host.Close())
	})

	t.Run("file", func(t *testing.T) {
		cfg := testConfig(t, config.BackendFile)
		host := NewHost(cfg, log.Nop())
		cp, err := host.Checkpointer(ctx)
		require.NoError(t, err)
		require.IsType(t, &checkpoints.FileStore{}, cp)

		require.NoError(t, host.Flush(ctx))
		_, err = os.Stat(cfg.StorePath)
		assert.NoError(t, err)
	})

	t.Run("sqlite", func(t *testing.T) {
		host := NewHost(testConfig(t, config.BackendSQLite), log.Nop())
		cp, err := host.Checkpointer(ctx)
		require.NoError(t, err)
		assert.IsType(t, &sqlite.Store{}, cp)
		assert.NoError(t, host.Close())
	})

	t.Run("redis", func(t *testing.T) {
		server, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(server.Close)

		cfg := testConfig(t, config.BackendRedis)
		cfg.RedisAddr = server.Addr()
		host := NewHost(cfg, log.Nop())
		cp, err := host.Checkpointer(ctx)
		require.NoError(t, err)
		assert.IsType(t, &cpredis.Store{}, cp)
		assert.NoError(t, host.Close())
	})
}

func TestHostOpensStoreOnce(t *testing.T) {
	ctx := context.Background()
	host := NewHost(testConfig(t, config.BackendMemory), log.Nop())

	first, err := host.Checkpointer(ctx)
	require.NoError(t, err)
	second, err := host.Checkpointer(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestHostOpenErrorIsSticky(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "tape")
	host := NewHost(cfg, log.Nop())

	_, err := host.Checkpointer(ctx)
	assert.ErrorIs(t, err, config.ErrInvalidBackend)
	_, err = host.Checkpointer(ctx)
	assert.ErrorIs(t, err, config.ErrInvalidBackend)
}

func TestHostRedisUnreachable(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	cfg := testConfig(t, config.BackendRedis)
	cfg.RedisAddr = addr
	_, err = NewHost(cfg, log.Nop()).Checkpointer(context.Background())

	var perr *types.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "open", perr.Op)
}

func TestHostWithCheckpointer(t *testing.T) {
	store := checkpoints.NewMemoryStore()
	host := NewHost(nil, nil, WithCheckpointer(store))

	cp, err := host.Checkpointer(context.Background())
	require.NoError(t, err)
	assert.Same(t, store, cp)
	assert.NotNil(t, host.Config())
	assert.NotNil(t, host.Logger())
}
