package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the memory document in a one-row slot table. The row
// is fully replaced on every save, matching the single-slot overwrite
// model of the file store.
type SQLiteStore struct {
	db       *sql.DB
	maxBytes int
	log      *logrus.Logger
}

// NewSQLiteStore creates/opens the slot database at path.
func NewSQLiteStore(path string, maxBytes int, log *logrus.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create memory db dir: %v", ErrStorage, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %v", ErrStorage, err)
	}
	// Single-process pipeline. One shared connection avoids writer lock
	// contention with SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, maxBytes: maxBytes, log: log}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS memory_slot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			document TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: init memory schema: %v", ErrStorage, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*CompressedMemory, error) {
	var document string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM memory_slot WHERE id = 1`).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.log.WithError(err).Warn("memory slot unreadable, starting from empty baseline")
		return nil, nil
	}

	var mem CompressedMemory
	if err := json.Unmarshal([]byte(document), &mem); err != nil {
		s.log.WithError(err).Warn("memory slot corrupt, starting from empty baseline")
		return nil, nil
	}
	if mem.GeneratedAt.IsZero() {
		s.log.Warn("memory slot missing generated_at, starting from empty baseline")
		return nil, nil
	}
	return &mem, nil
}

func (s *SQLiteStore) Save(ctx context.Context, mem CompressedMemory) error {
	data, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("%w: serialize: %v", ErrStorage, err)
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return fmt.Errorf("%w: %w", ErrStorage, &OverflowError{Size: len(data), Ceiling: s.maxBytes})
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_slot (id, document, updated_at_ms) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at_ms = excluded.updated_at_ms`,
		string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: replace memory slot: %v", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_slot`); err != nil {
		return fmt.Errorf("%w: clear memory slot: %v", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (StoreStats, error) {
	var size int64
	var updatedMS int64
	err := s.db.QueryRowContext(ctx, `SELECT length(document), updated_at_ms FROM memory_slot WHERE id = 1`).Scan(&size, &updatedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return StoreStats{}, nil
	}
	if err != nil {
		return StoreStats{}, fmt.Errorf("%w: stat memory slot: %v", ErrStorage, err)
	}
	return StoreStats{Exists: true, SizeBytes: size, UpdatedAt: time.UnixMilli(updatedMS)}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
