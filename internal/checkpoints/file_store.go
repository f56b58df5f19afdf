package checkpoints

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// FileStore is a MemoryStore mirrored to a single JSON document on disk.
// Every Put rewrites the document atomically: the export is written to a
// temp file in the same directory, synced, then renamed over the target.
//
// Several processes may share one document as long as each thread is driven
// by one process at a time. Before writing, the store re-reads the document
// and takes every thread it did not write itself from disk.
type FileStore struct {
	*MemoryStore
	path   string
	logger log.Logger

	mu sync.Mutex
	// written holds the threads this store has put since it was opened.
	written map[string]bool
	// replaced is set by Import: the next flush writes the store as is.
	replaced bool
}

type fileConfig struct {
	logger    log.Logger
	storeOpts []Option
}

// FileOption configures a FileStore.
type FileOption func(*fileConfig)

// WithFileLogger sets the logger used for load warnings.
func WithFileLogger(l log.Logger) FileOption {
	return func(c *fileConfig) {
		c.logger = l
	}
}

// WithStoreOptions applies memory store options to the FileStore.
func WithStoreOptions(opts ...Option) FileOption {
	return func(c *fileConfig) {
		c.storeOpts = append(c.storeOpts, opts...)
	}
}

// OpenFileStore loads the document at path. A missing, empty or unparseable
// document yields an empty store; only I/O failures are returned.
func OpenFileStore(ctx context.Context, path string, opts ...FileOption) (*FileStore, error) {
	cfg := fileConfig{logger: log.Default}
	for _, o := range opts {
		o(&cfg)
	}
	fs := &FileStore{
		MemoryStore: NewMemoryStore(cfg.storeOpts...),
		path:        path,
		logger:      cfg.logger,
		written:     make(map[string]bool),
	}
	if err := fs.load(ctx); err != nil {
		return nil, err
	}
	return fs, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) load(context.Context) error {
	threads, err := f.readDocument()
	if err != nil {
		return types.NewPersistenceError("load", "", err)
	}
	f.MemoryStore.reconcile(threads, func(string) bool { return false })
	return nil
}

// readDocument returns the threads stored on disk. A missing, empty or
// unparseable document reads as no threads.
func (f *FileStore) readDocument() (map[string][]*types.Checkpoint, error) {
	blob, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		f.logger.Debugf("checkpoint file %s not found, starting empty", f.path)
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "read %s", f.path)
	}

	if len(bytes.TrimSpace(blob)) == 0 {
		return nil, nil
	}
	threads, err := DecodeDocument(blob)
	if err != nil {
		f.logger.Warnf("checkpoint file %s is unreadable, treating it as empty: %v", f.path, err)
		return nil, nil
	}
	return threads, nil
}

// Put stores cp and persists the whole store.
func (f *FileStore) Put(ctx context.Context, threadID string, cp *types.Checkpoint) error {
	if err := f.MemoryStore.Put(ctx, threadID, cp); err != nil {
		return err
	}
	f.mu.Lock()
	f.written[threadID] = true
	f.mu.Unlock()

	if err := f.Flush(ctx); err != nil {
		return types.NewPersistenceError("put", threadID, err)
	}
	return nil
}

// Import replaces the store's contents and persists them. Threads in the
// document on disk that are not in blob are dropped.
func (f *FileStore) Import(ctx context.Context, blob []byte) error {
	if err := f.MemoryStore.Import(ctx, blob); err != nil {
		return err
	}
	f.mu.Lock()
	f.replaced = true
	f.written = make(map[string]bool)
	for _, id := range f.MemoryStore.Threads() {
		f.written[id] = true
	}
	f.mu.Unlock()
	return f.Flush(ctx)
}

// Flush merges the document on disk into the store, then writes the result.
// Threads this store wrote keep their in-memory history; every other thread
// takes the history found on disk.
func (f *FileStore) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.replaced {
		threads, err := f.readDocument()
		if err != nil {
			return types.NewPersistenceError("flush", "", err)
		}
		f.MemoryStore.reconcile(threads, func(id string) bool { return f.written[id] })
	}

	blob, err := f.MemoryStore.Export(ctx)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(f.path, blob); err != nil {
		return types.NewPersistenceError("flush", "", err)
	}
	f.replaced = false
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename %s", tmpName)
	}
	return nil
}

var _ types.Checkpointer = (*FileStore)(nil)
