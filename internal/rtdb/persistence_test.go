package rtdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercisePersistence(t *testing.T, p Persistence) map[string]any {
	t.Helper()
	ctx := context.Background()

	e, err := New(ctx, p, nil)
	require.NoError(t, err)

	require.NoError(t, e.Set(ctx, "users/u1", map[string]any{"username": "ana", "list": "l1"}))
	require.NoError(t, e.Set(ctx, "lists/l1", map[string]any{
		"name":  "Groceries",
		"owner": "u1",
		"catalog": map[string]any{
			"p1": map[string]any{"name": "Milk", "inList": false},
			"p2": map[string]any{"name": "Eggs"},
		},
	}))
	require.NoError(t, e.Update(ctx, "", map[string]any{
		"lists/l1/catalog/p1/inList": true,
		"lists/l1/list/p1":           map[string]any{"name": "Milk", "inList": true},
	}))
	require.NoError(t, e.Remove(ctx, "lists/l1/catalog/p2"))
	// A scalar replaced by an object must not leave the scalar behind.
	require.NoError(t, e.Set(ctx, "users/u1/list", map[string]any{"legacy": true}))
	require.NoError(t, e.Set(ctx, "users/u1/list", "l1"))

	snap, err := e.ReadOnce(ctx, "")
	require.NoError(t, err)
	live := snap.Value.(map[string]any)

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, live, loaded)
	return loaded
}

func TestBadgerPersistence_RoundTrip(t *testing.T) {
	p, err := openBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	loaded := exercisePersistence(t, p)
	assert.Equal(t, "l1", loaded["users"].(map[string]any)["u1"].(map[string]any)["list"])
}

func TestSQLitePersistence_RoundTrip(t *testing.T) {
	p, err := OpenSQLite(filepath.Join(t.TempDir(), "tree.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	loaded := exercisePersistence(t, p)
	catalog := loaded["lists"].(map[string]any)["l1"].(map[string]any)["catalog"].(map[string]any)
	assert.Len(t, catalog, 1)
}

func TestSQLitePersistence_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tree.db")

	e, err := Open(ctx, BackendSQLite, path, nil)
	require.NoError(t, err)
	require.NoError(t, e.Set(ctx, "lists/l1/name", "Groceries"))
	require.NoError(t, e.Close())

	e2, err := Open(ctx, BackendSQLite, path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e2.Close() })

	snap, err := e2.ReadOnce(ctx, "lists/l1/name")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", snap.Value)
}

func TestOpenPersistence_UnknownBackend(t *testing.T) {
	_, err := OpenPersistence("etcd", "", nil)
	assert.Error(t, err)

	p, err := OpenPersistence(BackendMemory, "", nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}
