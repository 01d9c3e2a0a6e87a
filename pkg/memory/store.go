package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// StoreStats describes the persisted slot for reporting.
type StoreStats struct {
	Exists    bool
	SizeBytes int64
	UpdatedAt time.Time
}

// Store is the single-slot persistence contract for compressed memory.
// Save fully replaces prior content; Load on a missing or corrupt slot
// returns (nil, nil) so a run proceeds with an empty baseline.
type Store interface {
	Load(ctx context.Context) (*CompressedMemory, error)
	Save(ctx context.Context, mem CompressedMemory) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (StoreStats, error)
	Close() error
}

// FileStore persists the memory document as one JSON file, replaced
// atomically via write-temp-then-rename.
type FileStore struct {
	path     string
	maxBytes int
	log      *logrus.Logger
}

// NewFileStore creates a file-backed store. maxBytes is the hard ceiling
// enforced on save as defense in depth behind the compressor's own
// trimming; zero disables the check.
func NewFileStore(path string, maxBytes int, log *logrus.Logger) *FileStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileStore{path: path, maxBytes: maxBytes, log: log}
}

func (s *FileStore) Load(ctx context.Context) (*CompressedMemory, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		s.log.WithError(err).WithField("path", s.path).Warn("memory slot unreadable, starting from empty baseline")
		return nil, nil
	}

	var mem CompressedMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		s.log.WithError(err).WithField("path", s.path).Warn("memory slot corrupt, starting from empty baseline")
		return nil, nil
	}
	if mem.GeneratedAt.IsZero() {
		s.log.WithField("path", s.path).Warn("memory slot missing generated_at, starting from empty baseline")
		return nil, nil
	}
	return &mem, nil
}

func (s *FileStore) Save(ctx context.Context, mem CompressedMemory) error {
	// Compact form, same serialization the compressor sizes against.
	data, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("%w: serialize: %v", ErrStorage, err)
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return fmt.Errorf("%w: %w", ErrStorage, &OverflowError{Size: len(data), Ceiling: s.maxBytes})
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create memory dir: %v", ErrStorage, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write temp file: %v", ErrStorage, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: replace memory slot: %v", ErrStorage, err)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: clear memory slot: %v", ErrStorage, err)
	}
	return nil
}

func (s *FileStore) Stats(ctx context.Context) (StoreStats, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return StoreStats{}, nil
		}
		return StoreStats{}, fmt.Errorf("%w: stat memory slot: %v", ErrStorage, err)
	}
	return StoreStats{Exists: true, SizeBytes: info.Size(), UpdatedAt: info.ModTime()}, nil
}

func (s *FileStore) Close() error { return nil }
