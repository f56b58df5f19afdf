// Package redis provides a Checkpointer backed by Redis.
//
// Key layout:
//
//	<prefix>threads          => SET of known thread ids
//	<prefix>thread:<id>      => LIST of JSON checkpoints, oldest first
package redis

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// DefaultPrefix namespaces keys when no prefix is given.
const DefaultPrefix = "sfmobile-mcp:"

type Store struct {
	client redis.UniversalClient
	prefix string
	limit  int
}

var _ types.Checkpointer = (*Store)(nil)

// New creates a Store. prefix is optional.
func New(client redis.UniversalClient, prefix string, limit int) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, limit: limit}
}

func (s *Store) keyThreads() string {
	return s.prefix + "threads"
}

func (s *Store) keyThread(id string) string {
	return s.prefix + "thread:" + id
}

func (s *Store) Get(ctx context.Context, threadID string) (*types.Checkpoint, error) {
	data, err := s.client.LIndex(ctx, s.keyThread(threadID), -1).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewPersistenceError("get", threadID, err)
	}
	cp, err := decode(data)
	if err != nil {
		return nil, types.NewPersistenceError("get", threadID, err)
	}
	return cp, nil
}

func (s *Store) Put(ctx context.Context, threadID string, cp *types.Checkpoint) error {
	if threadID == "" {
		return types.NewPersistenceError("put", threadID, checkpoints.ErrEmptyThreadID)
	}
	if cp == nil {
		return types.NewPersistenceError("put", threadID, checkpoints.ErrNilCheckpoint)
	}
	stored := cp.Clone()
	stored.ThreadID = threadID
	data, err := json.Marshal(stored)
	if err != nil {
		return types.NewPersistenceError("put", threadID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.keyThreads(), threadID)
		pipe.RPush(ctx, s.keyThread(threadID), data)
		if s.limit > 0 {
			pipe.LTrim(ctx, s.keyThread(threadID), int64(-s.limit), -1)
		}
		return nil
	})
	if err != nil {
		return types.NewPersistenceError("put", threadID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, threadID string) ([]*types.Checkpoint, error) {
	items, err := s.client.LRange(ctx, s.keyThread(threadID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, types.NewPersistenceError("list", threadID, err)
	}
	out := make([]*types.Checkpoint, 0, len(items))
	for _, item := range items {
		cp, err := decode([]byte(item))
		if err != nil {
			return nil, types.NewPersistenceError("list", threadID, err)
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *Store) threadIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.keyThreads()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Export(ctx context.Context) ([]byte, error) {
	ids, err := s.threadIDs(ctx)
	if err != nil {
		return nil, types.NewPersistenceError("export", "", err)
	}

	threads := make(map[string][]*types.Checkpoint, len(ids))
	for _, id := range ids {
		history, err := s.List(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(history) > 0 {
			threads[id] = history
		}
	}

	blob, err := checkpoints.EncodeDocument(threads)
	if err != nil {
		return nil, types.NewPersistenceError("export", "", err)
	}
	return blob, nil
}

func (s *Store) Import(ctx context.Context, blob []byte) error {
	threads, err := checkpoints.DecodeDocument(blob)
	if err != nil {
		return types.NewPersistenceError("import", "", err)
	}
	existing, err := s.threadIDs(ctx)
	if err != nil {
		return types.NewPersistenceError("import", "", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		stale := make([]string, 0, len(existing)+1)
		stale = append(stale, s.keyThreads())
		for _, id := range existing {
			stale = append(stale, s.keyThread(id))
		}
		pipe.Del(ctx, stale...)

		for id, history := range threads {
			if s.limit > 0 && len(history) > s.limit {
				history = history[len(history)-s.limit:]
			}
			if len(history) == 0 {
				continue
			}
			values := make([]any, 0, len(history))
			for _, cp := range history {
				data, err := json.Marshal(cp)
				if err != nil {
					return errors.Wrapf(err, "encode thread %s", id)
				}
				values = append(values, data)
			}
			pipe.SAdd(ctx, s.keyThreads(), id)
			pipe.RPush(ctx, s.keyThread(id), values...)
		}
		return nil
	})
	if err != nil {
		return types.NewPersistenceError("import", "", err)
	}
	return nil
}

func decode(data []byte) (*types.Checkpoint, error) {
	var cp types.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errors.Wrap(err, "decode checkpoint")
	}
	return &cp, nil
}
