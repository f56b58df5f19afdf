package checkpoints

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
)

func openTestStore(t *testing.T, path string) *FileStore {
	t.Helper()
	fs, err := OpenFileStore(context.Background(), path, WithFileLogger(log.Nop()))
	require.NoError(t, err)
	return fs
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state", "workflow_state.json")

	fs := openTestStore(t, path)
	got, err := fs.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, path, fs.Path())
}

func TestFileStoreCorruptFileIsEmpty(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"truncated": `{"version":1,"threads":{"t1":[{"id":`,
		"garbage":   "not json at all",
		"blank":     "   \n",
		"version":   `{"version":99,"threads":{}}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "workflow_state.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			fs := openTestStore(t, path)
			assert.Empty(t, fs.Threads())
		})
	}
}

func TestFileStorePersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "workflow_state.json")

	first := openTestStore(t, path)
	require.NoError(t, first.Put(ctx, "t1", sampleCheckpoint("t1", 0, false)))
	require.NoError(t, first.Put(ctx, "t1", sampleCheckpoint("t1", 1, true)))

	second := openTestStore(t, path)
	got, err := second.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)

	want, err := first.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, want.Snapshot(), got.Snapshot())
}

func TestFileStoreWritesAtomically(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow_state.json")

	fs := openTestStore(t, path)
	for step := range 3 {
		require.NoError(t, fs.Put(ctx, "t1", sampleCheckpoint("t1", step, false)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "workflow_state.json", entries[0].Name())

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	exported, err := fs.Export(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(exported), string(blob))
}

func TestFileStoreDeletedBetweenOpens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "workflow_state.json")

	fs := openTestStore(t, path)
	require.NoError(t, fs.Put(ctx, "t1", sampleCheckpoint("t1", 0, true)))
	require.NoError(t, os.Remove(path))

	reopened := openTestStore(t, path)
	got, err := reopened.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreImportFlushes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := NewMemoryStore()
	require.NoError(t, src.Put(ctx, "t9", sampleCheckpoint("t9", 2, true)))
	blob, err := src.Export(ctx)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "workflow_state.json")
	fs := openTestStore(t, path)
	require.NoError(t, fs.Import(ctx, blob))

	reopened := openTestStore(t, path)
	got, err := reopened.Get(ctx, "t9")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Step)
}

func TestFileStoreKeepsThreadsWrittenElsewhere(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "workflow_state.json")

	first := openTestStore(t, path)
	second := openTestStore(t, path)
	require.NoError(t, second.Put(ctx, "tB", sampleCheckpoint("tB", 0, true)))
	require.NoError(t, first.Put(ctx, "tA", sampleCheckpoint("tA", 0, true)))

	reopened := openTestStore(t, path)
	for _, id := range []string{"tA", "tB"} {
		got, err := reopened.Get(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, got, "thread %s", id)
	}

	got, err := first.Get(ctx, "tB")
	require.NoError(t, err)
	assert.NotNil(t, got, "the flush refreshes threads written by another store")
}

func TestFileStoreOwnThreadsWin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "workflow_state.json")

	first := openTestStore(t, path)
	require.NoError(t, first.Put(ctx, "t1", sampleCheckpoint("t1", 0, true)))

	second := openTestStore(t, path)
	require.NoError(t, second.Put(ctx, "t2", sampleCheckpoint("t2", 0, true)))
	require.NoError(t, first.Put(ctx, "t1", sampleCheckpoint("t1", 1, false)))

	reopened := openTestStore(t, path)
	got, err := reopened.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Step)

	got, err = reopened.Get(ctx, "t2")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestFileStoreImportDropsOtherThreads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "workflow_state.json")

	other := openTestStore(t, path)
	require.NoError(t, other.Put(ctx, "old", sampleCheckpoint("old", 0, true)))

	src := NewMemoryStore()
	require.NoError(t, src.Put(ctx, "new", sampleCheckpoint("new", 0, true)))
	blob, err := src.Export(ctx)
	require.NoError(t, err)

	fs := openTestStore(t, path)
	require.NoError(t, fs.Import(ctx, blob))

	reopened := openTestStore(t, path)
	assert.ElementsMatch(t, []string{"new"}, reopened.Threads())
}
