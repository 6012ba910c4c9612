package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

//go:embed sql/get-reading-log.sql
var getReadingLogSQL string

//go:embed sql/upsert-reading-log.sql
var upsertReadingLogSQL string

// SnapshotRepository reads and replaces the durable copy of the reading log.
// Read returns nil data and a nil error when nothing has been persisted yet.
type SnapshotRepository interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte, count int) error
}

type fileRepository struct {
	path string
}

// NewFileRepository stores the log as a single file at path.
func NewFileRepository(path string) SnapshotRepository {
	return &fileRepository{path: path}
}

func (r *fileRepository) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return data, nil
}

// Write replaces the file atomically so a crash mid-write leaves the
// previous copy intact.
func (r *fileRepository) Write(_ context.Context, data []byte, _ int) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", r.path, err)
	}
	return nil
}

type sqliteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository stores the log in the reading_log table created by
// the migrations in internal/db/migrate.
func NewSQLiteRepository(db *sql.DB) SnapshotRepository {
	return &sqliteRepository{db: db, now: time.Now}
}

func (r *sqliteRepository) Read(ctx context.Context) ([]byte, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, getReadingLogSQL).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reading log: %w", err)
	}
	return []byte(payload), nil
}

func (r *sqliteRepository) Write(ctx context.Context, data []byte, count int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	savedAt := r.now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, upsertReadingLogSQL, string(data), count, len(data), savedAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("write reading log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reading log: %w", err)
	}
	return nil
}
