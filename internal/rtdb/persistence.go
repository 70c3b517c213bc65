package rtdb

import (
	"context"
	"log/slog"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
)

// Backend names accepted by OpenPersistence.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// OpenPersistence opens the named backend at path. The memory backend
// returns nil: the engine then keeps the tree in memory only.
func OpenPersistence(backend, path string, logger *slog.Logger) (Persistence, error) {
	switch backend {
	case BackendMemory, "":
		return nil, nil
	case BackendBadger:
		return OpenBadger(path, logger)
	case BackendSQLite:
		return OpenSQLite(path, logger)
	default:
		return nil, errors.Validationf("unknown store backend %q", backend)
	}
}

// Open opens the backend and loads an engine from it.
func Open(ctx context.Context, backend, path string, logger *slog.Logger) (*Engine, error) {
	p, err := OpenPersistence(backend, path, logger)
	if err != nil {
		return nil, err
	}
	e, err := New(ctx, p, logger)
	if err != nil {
		if p != nil {
			_ = p.Close()
		}
		return nil, err
	}
	return e, nil
}

// rebuild turns flattened leaves back into a tree.
func rebuild(flat map[string]any) map[string]any {
	var root any
	for path, v := range flat {
		segs, err := splitPath(path)
		if err != nil || len(segs) == 0 {
			continue
		}
		root = setAt(root, segs, v)
	}
	m, _ := root.(map[string]any)
	return m
}
