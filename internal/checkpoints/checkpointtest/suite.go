// Package checkpointtest holds a conformance suite shared by every
// Checkpointer implementation.
package checkpointtest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// Sample builds a deterministic checkpoint for threadID at step.
func Sample(threadID string, step int, suspended bool) *types.Checkpoint {
	cp := &types.Checkpoint{
		ID:           fmt.Sprintf("cp-%s-%d", threadID, step),
		ThreadID:     threadID,
		Graph:        "greeting",
		Step:         step,
		Status:       types.StatusReady,
		State:        state.State{"count": float64(step), "errors": []any{"e1"}},
		PendingTasks: []string{"ask"},
		CreatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC),
	}
	if step > 0 {
		cp.ParentID = fmt.Sprintf("cp-%s-%d", threadID, step-1)
	}
	if suspended {
		cp.Status = types.StatusSuspended
		cp.Interrupt = &types.Interrupt{
			ID:   "int-" + threadID,
			Node: "ask",
			Step: step,
			Request: types.ToolInvocationRequest{
				Name:        "collect-name",
				Description: "Ask the user for their name",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}}}`),
				InputValues: map[string]any{"name": "example"},
			},
		}
	}
	return cp
}

// Run exercises the Checkpointer contract against stores built by newStore.
// Each subtest receives a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) types.Checkpointer) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown thread", func(t *testing.T) {
		store := newStore(t)
		got, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)

		history, err := store.List(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("last write wins", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "t1", Sample("t1", 0, false)))
		require.NoError(t, store.Put(ctx, "t1", Sample("t1", 1, true)))

		got, err := store.Get(ctx, "t1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, Sample("t1", 1, true).Snapshot(), got.Snapshot())

		history, err := store.List(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "cp-t1-0", history[0].ID)
		assert.Equal(t, "cp-t1-1", history[1].ID)
	})

	t.Run("threads are independent", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "a", Sample("a", 4, false)))
		require.NoError(t, store.Put(ctx, "b", Sample("b", 7, true)))

		a, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 4, a.Step)
		b, err := store.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 7, b.Step)
	})

	t.Run("rejects empty thread id", func(t *testing.T) {
		store := newStore(t)
		err := store.Put(ctx, "", Sample("x", 0, false))
		var perr *types.PersistenceError
		require.ErrorAs(t, err, &perr)
	})

	t.Run("export import round trip", func(t *testing.T) {
		src := newStore(t)
		require.NoError(t, src.Put(ctx, "t1", Sample("t1", 0, false)))
		require.NoError(t, src.Put(ctx, "t1", Sample("t1", 1, true)))
		require.NoError(t, src.Put(ctx, "t2", Sample("t2", 5, false)))

		blob, err := src.Export(ctx)
		require.NoError(t, err)

		dst := newStore(t)
		require.NoError(t, dst.Put(ctx, "stale", Sample("stale", 0, false)))
		require.NoError(t, dst.Import(ctx, blob))

		for _, id := range []string{"t1", "t2"} {
			want, err := src.Get(ctx, id)
			require.NoError(t, err)
			got, err := dst.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, want.Snapshot(), got.Snapshot(), id)
		}

		stale, err := dst.Get(ctx, "stale")
		require.NoError(t, err)
		assert.Nil(t, stale)

		again, err := dst.Export(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, string(blob), string(again))
	})

	t.Run("import rejects garbage", func(t *testing.T) {
		store := newStore(t)
		err := store.Import(ctx, []byte("{not json"))
		var perr *types.PersistenceError
		require.ErrorAs(t, err, &perr)
	})
}
