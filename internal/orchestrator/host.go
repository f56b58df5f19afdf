package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints"
	cpredis "github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints/redis"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints/sqlite"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/config"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// flusher is implemented by stores that buffer writes.
type flusher interface {
	Flush(ctx context.Context) error
}

// Host is the per-process context shared by every orchestrator. It owns the
// configuration, the logger and the checkpoint store, which is opened on
// first use.
type Host struct {
	cfg    *config.Config
	logger log.Logger

	once   sync.Once
	store  types.Checkpointer
	closer func() error
	err    error
}

// HostOption configures a Host
type HostOption func(*Host)

// WithCheckpointer supplies an already open store instead of the configured
// backend.
func WithCheckpointer(cp types.Checkpointer) HostOption {
	return func(h *Host) {
		h.once.Do(func() {
			h.store = cp
		})
	}
}

func NewHost(cfg *config.Config, logger log.Logger, opts ...HostOption) *Host {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.Default
	}
	h := &Host{cfg: cfg, logger: logger}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Host) Config() *config.Config {
	return h.cfg
}

func (h *Host) Logger() log.Logger {
	return h.logger
}

// Checkpointer returns the process-wide store, opening it on the first
// call. An open failure is sticky for the life of the Host.
func (h *Host) Checkpointer(ctx context.Context) (types.Checkpointer, error) {
	h.once.Do(func() {
		h.store, h.closer, h.err = h.open(ctx)
		if h.err != nil {
			h.logger.Errorf("opening %s checkpoint store: %v", h.cfg.Backend(), h.err)
			return
		}
		h.logger.Debugf("opened %s checkpoint store", h.cfg.Backend())
	})
	return h.store, h.err
}

func (h *Host) open(ctx context.Context) (types.Checkpointer, func() error, error) {
	limit := h.cfg.HistoryLimit

	switch h.cfg.Backend() {
	case config.BackendMemory:
		return checkpoints.NewMemoryStore(checkpoints.WithHistoryLimit(limit)), nil, nil

	case config.BackendFile:
		store, err := checkpoints.OpenFileStore(ctx, h.cfg.StorePath,
			checkpoints.WithFileLogger(h.logger),
			checkpoints.WithStoreOptions(checkpoints.WithHistoryLimit(limit)),
		)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(h.cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, types.NewPersistenceError("open", "", errors.Wrap(err, "create sqlite directory"))
		}
		store, err := sqlite.Open(ctx, h.cfg.SQLitePath, limit)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{Addr: h.cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, types.NewPersistenceError("open", "", errors.Wrapf(err, "ping redis at %s", h.cfg.RedisAddr))
		}
		return cpredis.New(client, h.cfg.RedisPrefix, limit), client.Close, nil

	default:
		return nil, nil, errors.Wrapf(config.ErrInvalidBackend, "%q", h.cfg.StoreBackend)
	}
}

// Flush persists buffered writes, if the store buffers any.
func (h *Host) Flush(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	if f, ok := h.store.(flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Close releases the store's connections.
func (h *Host) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer()
}
