package checkpoints

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

const (
	// DocumentVersion is the version written into exported store documents.
	DocumentVersion = 1

	// DefaultHistoryLimit bounds the number of checkpoints kept per thread.
	DefaultHistoryLimit = 100
)

var (
	ErrEmptyThreadID  = errors.New("thread id must not be empty")
	ErrNilCheckpoint  = errors.New("checkpoint must not be nil")
	ErrVersionUnknown = errors.New("unsupported checkpoint document version")
)

// Document is the serialized form of a whole store: thread id mapped to the
// thread's checkpoints, oldest first.
type Document struct {
	Version int                            `json:"version"`
	Threads map[string][]*types.Checkpoint `json:"threads"`
}

// EncodeDocument serializes threads. Map keys are emitted in sorted order so
// equal stores export byte-identical documents.
func EncodeDocument(threads map[string][]*types.Checkpoint) ([]byte, error) {
	doc := Document{Version: DocumentVersion, Threads: threads}
	if doc.Threads == nil {
		doc.Threads = map[string][]*types.Checkpoint{}
	}
	return json.Marshal(doc)
}

// DecodeDocument parses a blob produced by EncodeDocument.
func DecodeDocument(blob []byte) (map[string][]*types.Checkpoint, error) {
	var doc Document
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("decode checkpoint document: %w", err)
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersionUnknown, doc.Version)
	}
	threads := make(map[string][]*types.Checkpoint, len(doc.Threads))
	for id, history := range doc.Threads {
		kept := make([]*types.Checkpoint, 0, len(history))
		for _, cp := range history {
			if cp != nil {
				kept = append(kept, cp)
			}
		}
		threads[id] = kept
	}
	return threads, nil
}

func validatePut(threadID string, cp *types.Checkpoint) error {
	if threadID == "" {
		return ErrEmptyThreadID
	}
	if cp == nil {
		return ErrNilCheckpoint
	}
	return nil
}

// trim keeps the newest limit entries of history.
func trim(history []*types.Checkpoint, limit int) []*types.Checkpoint {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return append([]*types.Checkpoint(nil), history[len(history)-limit:]...)
}
