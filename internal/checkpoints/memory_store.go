package checkpoints

import (
	"context"
	"sync"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// Option configures a store.
type Option func(*options)

type options struct {
	historyLimit int
}

func defaultOptions() options {
	return options{historyLimit: DefaultHistoryLimit}
}

// WithHistoryLimit bounds the number of checkpoints kept per thread. A value
// <= 0 keeps every checkpoint.
func WithHistoryLimit(n int) Option {
	return func(o *options) {
		o.historyLimit = n
	}
}

// MemoryStore keeps checkpoints in process memory. It does not survive
// process exit.
type MemoryStore struct {
	threads map[string][]*types.Checkpoint
	limit   int
	mu      sync.RWMutex
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		threads: make(map[string][]*types.Checkpoint),
		limit:   o.historyLimit,
	}
}

func (m *MemoryStore) Get(_ context.Context, threadID string) (*types.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.threads[threadID]
	if len(history) == 0 {
		return nil, nil
	}
	return history[len(history)-1].Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, threadID string, cp *types.Checkpoint) error {
	if err := validatePut(threadID, cp); err != nil {
		return types.NewPersistenceError("put", threadID, err)
	}

	stored := cp.Clone()
	stored.ThreadID = threadID

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = trim(append(m.threads[threadID], stored), m.limit)
	return nil
}

func (m *MemoryStore) List(_ context.Context, threadID string) ([]*types.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.threads[threadID]
	out := make([]*types.Checkpoint, 0, len(history))
	for _, cp := range history {
		out = append(out, cp.Clone())
	}
	return out, nil
}

func (m *MemoryStore) Export(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, err := EncodeDocument(m.threads)
	if err != nil {
		return nil, types.NewPersistenceError("export", "", err)
	}
	return blob, nil
}

func (m *MemoryStore) Import(_ context.Context, blob []byte) error {
	threads, err := DecodeDocument(blob)
	if err != nil {
		return types.NewPersistenceError("import", "", err)
	}
	for id, history := range threads {
		threads[id] = trim(history, m.limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads = threads
	return nil
}

// Threads returns the ids of every stored thread.
func (m *MemoryStore) Threads() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.threads))
	for id := range m.threads {
		ids = append(ids, id)
	}
	return ids
}

// reconcile replaces every thread for which keep reports false with its
// history in threads, dropping it when threads has none.
func (m *MemoryStore) reconcile(threads map[string][]*types.Checkpoint, keep func(id string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged := make(map[string][]*types.Checkpoint, len(threads)+len(m.threads))
	for id, history := range m.threads {
		if keep(id) {
			merged[id] = history
		}
	}
	for id, history := range threads {
		if keep(id) || len(history) == 0 {
			continue
		}
		merged[id] = trim(history, m.limit)
	}
	m.threads = merged
}

var _ types.Checkpointer = (*MemoryStore)(nil)
