package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/docflowlabs/docproc/internal/models"
)

const recordKeyPrefix = "doc/"

// BadgerStore is the embedded record store used by the local server and the
// test suite. Records are stored as JSON under doc/<id>.
type BadgerStore struct {
	db *badger.DB
}

// badgerLoggerAdapter routes badger's internal logging through slog.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBadgerStore opens (or creates) a Badger database at dataDir. Pass
// inMemory=true for an ephemeral store, used by tests.
func OpenBadgerStore(dataDir string, inMemory bool) (*BadgerStore, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		opts = badger.DefaultOptions(dataDir)
	}
	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func recordKey(id string) []byte {
	return []byte(recordKeyPrefix + id)
}

func (s *BadgerStore) Create(ctx context.Context, rec *models.DocumentRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	key := recordKey(rec.DocumentID)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, value)
	})
}

// UpdateIf performs the read-check-write inside one badger transaction.
// Field names follow the record's JSON tags, so the merge goes through a
// generic map round-trip instead of per-field switch statements.
func (s *BadgerStore) UpdateIf(ctx context.Context, documentID string, expected models.Status, fields Fields, next models.Status) error {
	key := recordKey(documentID)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var raw map[string]any
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &raw)
		}); err != nil {
			return fmt.Errorf("failed to decode record %s: %w", documentID, err)
		}

		cur, _ := raw["status"].(string)
		if models.Status(cur) != expected {
			return ErrPreconditionFailed
		}
		if !expected.CanAdvanceTo(next) {
			return fmt.Errorf("illegal transition %s -> %s", expected, next)
		}

		for k, v := range fields {
			raw[k] = v
		}
		raw["status"] = string(next)

		value, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", documentID, err)
		}
		return txn.Set(key, value)
	})
}

func (s *BadgerStore) Get(ctx context.Context, documentID string) (*models.DocumentRecord, error) {
	var rec models.DocumentRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(documentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BadgerStore) ScanAll(ctx context.Context) ([]*models.DocumentRecord, error) {
	var records []*models.DocumentRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(recordKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec models.DocumentRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("failed to decode record %s: %w", it.Item().Key(), err)
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
