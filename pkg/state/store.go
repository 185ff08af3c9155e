package state

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/config"
)

const (
	dirMode          = 0o755 // Default directory permissions
	offsetPrefix     = "offset:"
	offsetBase       = 10
	offsetBitSize    = 64
	maxPendingWrites = 256
)

// Store is a badger-backed OffsetStore with optional S3 checkpoints.
type Store struct {
	db     *badger.DB
	name   string
	cfg    config.StateConfig
	logger *zap.Logger
}

// Open opens (or creates) the store for one pipeline under cfg.Path. When the
// directory is new and S3 checkpoints are enabled, the last checkpoint is
// restored before the store is handed out.
func Open(ctx context.Context, name string, cfg config.StateConfig, logger *zap.Logger) (*Store, error) {
	path := filepath.Join(cfg.Path, name)
	if err := os.MkdirAll(path, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create state path: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state path: %w", err)
	}
	fresh := len(entries) == 0

	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &Store{db: db, name: name, cfg: cfg, logger: logger.Named("state")}
	if fresh {
		if err := s.Restore(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to restore checkpoint: %w", err)
		}
	} else {
		s.logger.Info("skipping checkpoint restore: state directory is not empty", zap.String("path", path))
	}
	return s, nil
}

// OpenInMemory returns a store that lives only as long as the process.
func OpenInMemory(logger *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, name: "memory", logger: logger.Named("state")}, nil
}

func offsetKey(topic string, partition int) []byte {
	return fmt.Appendf(nil, "%s%s:%d", offsetPrefix, topic, partition)
}

// SaveOffset stores offset as the last processed offset of topic/partition.
func (s *Store) SaveOffset(topic string, partition int, offset int64) error {
	val := strconv.AppendInt(nil, offset, offsetBase)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(offsetKey(topic, partition), val)
	})
}

// GetOffset returns the last processed offset, or ErrNotFound.
func (s *Store) GetOffset(topic string, partition int) (int64, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(offsetKey(topic, partition))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("offset for %s/%d: %w", topic, partition, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get offset for %s/%d: %w", topic, partition, err)
	}
	return strconv.ParseInt(string(raw), offsetBase, offsetBitSize)
}

// Offsets lists every stored offset keyed by "topic:partition".
func (s *Store) Offsets() (map[string]int64, error) {
	out := make(map[string]int64)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(offsetPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			off, err := strconv.ParseInt(string(raw), offsetBase, offsetBitSize)
			if err != nil {
				return fmt.Errorf("corrupt offset %s: %w", item.Key(), err)
			}
			out[strings.TrimPrefix(string(item.Key()), offsetPrefix)] = off
		}
		return nil
	})
	return out, err
}

// Backup writes a gzip-compressed full backup of the store to w.
func (s *Store) Backup(w io.Writer) error {
	gz := gzip.NewWriter(w)
	if _, err := s.db.Backup(gz, 0); err != nil {
		_ = gz.Close()
		return fmt.Errorf("badger backup: %w", err)
	}
	return gz.Close()
}

// LoadBackup reads a backup written by Backup into the store.
func (s *Store) LoadBackup(r io.Reader) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer gz.Close()
	if err := s.db.Load(gz, maxPendingWrites); err != nil {
		return fmt.Errorf("badger load: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }
