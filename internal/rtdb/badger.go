package rtdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Leaves are stored one key per scalar: "t:" + slash path -> JSON value.
const badgerPrefix = "t:"

// BadgerPersistence keeps the tree in a Badger database.
type BadgerPersistence struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadger opens (or creates) the database directory at path.
func OpenBadger(path string, logger *slog.Logger) (*BadgerPersistence, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}
	return &BadgerPersistence{db: db, logger: logger}, nil
}

// openBadgerInMemory is used by tests.
func openBadgerInMemory() (*BadgerPersistence, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &BadgerPersistence{db: db}, nil
}

// Load reads every leaf and rebuilds the tree.
func (b *BadgerPersistence) Load(_ context.Context) (map[string]any, error) {
	flat := make(map[string]any)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			path := strings.TrimPrefix(string(item.Key()), badgerPrefix)
			err := item.Value(func(val []byte) error {
				var v any
				if err := json.Unmarshal(val, &v); err != nil {
					return fmt.Errorf("decode %q: %w", path, err)
				}
				flat[path] = v
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rebuild(flat), nil
}

// Apply writes muts in one transaction.
func (b *BadgerPersistence) Apply(_ context.Context, muts []Mutation) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, m := range muts {
			if err := b.apply(txn, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerPersistence) apply(txn *badger.Txn, m Mutation) error {
	segs, err := splitPath(m.Path)
	if err != nil {
		return err
	}

	// Drop the old subtree, then any scalar stored at an ancestor.
	var stale [][]byte
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(badgerPrefix + m.Path)
	it := txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		rest := strings.TrimPrefix(key, badgerPrefix+m.Path)
		if m.Path == "" || rest == "" || strings.HasPrefix(rest, "/") {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
	}
	it.Close()
	for _, a := range ancestors(segs) {
		stale = append(stale, []byte(badgerPrefix+a))
	}
	for _, k := range stale {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}

	flat := make(map[string]any)
	leaves(m.Path, m.Value, flat)
	for path, v := range flat {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		if err := txn.Set([]byte(badgerPrefix+path), data); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (b *BadgerPersistence) Close() error {
	if b.logger != nil {
		b.logger.Info("Closing database connection")
	}
	return b.db.Close()
}
