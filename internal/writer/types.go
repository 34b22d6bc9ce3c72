package writer

import (
	"context"
	"time"

	"github.com/rickgao/inkwell/internal/database"
	"github.com/rickgao/inkwell/internal/workspace"
)

// Config contains configuration for the autosave writer.
type Config struct {
	// BatchSize is the number of distinct files to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     50,
		FlushInterval: 2 * time.Second,
	}
}

// Snapshot is unsaved editor content for one file.
type Snapshot struct {
	Hash    workspace.Hash
	Path    string
	Content string
	At      time.Time
}

// Store persists snapshots. *database.AutosaveStore implements it.
type Store interface {
	PutBatch(ctx context.Context, rows []database.AutosaveRow) error
	Get(ctx context.Context, hash uint64) (database.AutosaveRow, error)
	DeleteBefore(ctx context.Context, hash uint64, t time.Time) error
}

// Metrics contains writer statistics.
type Metrics struct {
	Received     int64 `json:"received"`
	Deduplicated int64 `json:"deduplicated"` // Replaced by a newer snapshot before flushing
	Discarded    int64 `json:"discarded"`    // Dropped by Forget
	Written      int64 `json:"written"`
	Flushes      int64 `json:"flushes"`
	Errors       int64 `json:"errors"`
}

func (s Snapshot) row() database.AutosaveRow {
	return database.AutosaveRow{
		Hash:    uint64(s.Hash),
		Path:    s.Path,
		Content: s.Content,
		SavedAt: s.At,
	}
}
