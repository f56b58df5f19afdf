// Package sqlite provides a Checkpointer backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Store keeps each checkpoint as one row; the row with the highest seq for a
// thread is the thread's latest checkpoint.
type Store struct {
	db    *sql.DB
	limit int
}

var _ types.Checkpointer = (*Store)(nil)

// Open opens (or creates) the database file at path and prepares the schema.
func Open(ctx context.Context, path string, limit int) (*Store, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, types.NewPersistenceError("open", "", errors.Wrapf(err, "open %s", path))
	}
	// a single connection keeps writes serialized
	db.SetMaxOpenConns(1)
	s, err := New(ctx, db, limit)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New initializes the schema in db. The caller owns db unless it was opened
// through Open.
func New(ctx context.Context, db *sql.DB, limit int) (*Store, error) {
	s := &Store{db: db, limit: limit}
	if err := s.initSchema(ctx); err != nil {
		return nil, types.NewPersistenceError("init", "", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			checkpoint_id TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (thread_id, seq)
		);`,
	)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, threadID string) (*types.Checkpoint, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`,
		threadID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewPersistenceError("put", threadID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM checkpoints WHERE thread_id = ?`, threadID,
	).Scan(&seq); err != nil {
		return types.NewPersistenceError("put", threadID, err)
	}
	seq++
	if err := insert(ctx, tx, threadID, seq, stored.ID, data); err != nil {
		return types.NewPersistenceError("put", threadID, err)
	}
	if s.limit > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM checkpoints WHERE thread_id = ? AND seq <= ?`, threadID, seq-int64(s.limit),
		); err != nil {
			return types.NewPersistenceError("put", threadID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return types.NewPersistenceError("put", threadID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, threadID string) ([]*types.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM checkpoints WHERE thread_id = ? ORDER BY seq ASC`, threadID,
	)
	if err != nil {
		return nil, types.NewPersistenceError("list", threadID, err)
	}
	defer rows.Close()

	out := make([]*types.Checkpoint, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, types.NewPersistenceError("list", threadID, err)
		}
		cp, err := decode(data)
		if err != nil {
			return nil, types.NewPersistenceError("list", threadID, err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewPersistenceError("list", threadID, err)
	}
	return out, nil
}

func (s *Store) Export(ctx context.Context) ([]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, data FROM checkpoints ORDER BY thread_id ASC, seq ASC`,
	)
	if err != nil {
		return nil, types.NewPersistenceError("export", "", err)
	}
	defer rows.Close()

	threads := make(map[string][]*types.Checkpoint)
	for rows.Next() {
		var (
			threadID string
			data     []byte
		)
		if err := rows.Scan(&threadID, &data); err != nil {
			return nil, types.NewPersistenceError("export", "", err)
		}
		cp, err := decode(data)
		if err != nil {
			return nil, types.NewPersistenceError("export", threadID, err)
		}
		threads[threadID] = append(threads[threadID], cp)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewPersistenceError("export", "", err)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewPersistenceError("import", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints`); err != nil {
		return types.NewPersistenceError("import", "", err)
	}
	for threadID, history := range threads {
		if s.limit > 0 && len(history) > s.limit {
			history = history[len(history)-s.limit:]
		}
		for i, cp := range history {
			data, err := json.Marshal(cp)
			if err != nil {
				return types.NewPersistenceError("import", threadID, err)
			}
			if err := insert(ctx, tx, threadID, int64(i+1), cp.ID, data); err != nil {
				return types.NewPersistenceError("import", threadID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return types.NewPersistenceError("import", "", err)
	}
	return nil
}

func insert(ctx context.Context, tx *sql.Tx, threadID string, seq int64, id string, data []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, seq, checkpoint_id, data) VALUES (?, ?, ?, ?)`,
		threadID, seq, id, data,
	)
	return err
}

func decode(data []byte) (*types.Checkpoint, error) {
	var cp types.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errors.Wrap(err, "decode checkpoint")
	}
	return &cp, nil
}
