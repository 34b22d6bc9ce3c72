package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no autosave snapshot exists for a hash.
var ErrNotFound = errors.New("autosave snapshot not found")

// AutosaveRow is one stored snapshot of unsaved content.
type AutosaveRow struct {
	Hash    uint64
	Path    string
	Content string
	SavedAt time.Time
}

// AutosaveStore reads and writes autosave snapshots.
type AutosaveStore struct {
	db *sql.DB
}

// NewAutosaveStore returns a store backed by db. db must have been opened with Open.
func NewAutosaveStore(db *sql.DB) *AutosaveStore {
	return &AutosaveStore{db: db}
}

const upsertAutosave = `
INSERT INTO autosaves (hash, path, content, saved_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (hash) DO UPDATE SET
    path = excluded.path,
    content = excluded.content,
    saved_at = excluded.saved_at
WHERE excluded.saved_at >= autosaves.saved_at`

// Put stores a single snapshot.
func (s *AutosaveStore) Put(ctx context.Context, row AutosaveRow) error {
	return s.PutBatch(ctx, []AutosaveRow{row})
}

// PutBatch stores snapshots in one transaction. For each hash the newest
// snapshot wins, including against rows already stored.
func (s *AutosaveStore) PutBatch(ctx context.Context, rows []AutosaveRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin autosave batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertAutosave)
	if err != nil {
		return fmt.Errorf("prepare autosave upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			int64(row.Hash), row.Path, row.Content, row.SavedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("upsert autosave %d: %w", row.Hash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit autosave batch: %w", err)
	}
	return nil
}

// Get returns the snapshot for hash.
func (s *AutosaveStore) Get(ctx context.Context, hash uint64) (AutosaveRow, error) {
	var (
		row     AutosaveRow
		id      int64
		savedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT hash, path, content, saved_at FROM autosaves WHERE hash = ?", int64(hash),
	).Scan(&id, &row.Path, &row.Content, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AutosaveRow{}, ErrNotFound
	}
	if err != nil {
		return AutosaveRow{}, fmt.Errorf("get autosave %d: %w", hash, err)
	}
	row.Hash = uint64(id)
	row.SavedAt = time.UnixMilli(savedAt).UTC()
	return row, nil
}

// Delete removes the snapshot for hash. Deleting a missing snapshot is not an error.
func (s *AutosaveStore) Delete(ctx context.Context, hash uint64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM autosaves WHERE hash = ?", int64(hash)); err != nil {
		return fmt.Errorf("delete autosave %d: %w", hash, err)
	}
	return nil
}

// DeleteBefore removes the snapshot for hash if it was saved at or before t.
func (s *AutosaveStore) DeleteBefore(ctx context.Context, hash uint64, t time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM autosaves WHERE hash = ? AND saved_at <= ?", int64(hash), t.UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("delete autosave %d: %w", hash, err)
	}
	return nil
}

// Count returns the number of stored snapshots.
func (s *AutosaveStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM autosaves").Scan(&n); err != nil {
		return 0, fmt.Errorf("count autosaves: %w", err)
	}
	return n, nil
}
