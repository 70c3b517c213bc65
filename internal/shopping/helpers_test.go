package shopping

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
	"github.com/inesosoares6/shopping-list-v2/internal/notify"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/rtdb"
)

var christmasEve = time.Date(2026, time.December, 24, 18, 30, 0, 0, time.UTC)

// countingStore counts Set calls per path.
type countingStore struct {
	remote.Store

	mu   sync.Mutex
	sets map[string]int
}

func (c *countingStore) Set(ctx context.Context, path string, value any) error {
	c.mu.Lock()
	if c.sets == nil {
		c.sets = make(map[string]int)
	}
	c.sets[path]++
	c.mu.Unlock()
	return c.Store.Set(ctx, path, value)
}

func (c *countingStore) setsAt(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[path]
}

// mutedStore accepts subscriptions but never delivers events.
type mutedStore struct {
	remote.Store
}

func (mutedStore) SubscribeAdded(context.Context, string, remote.Handler) (remote.Subscription, error) {
	return remote.Group(nil), nil
}

func (mutedStore) SubscribeChanged(context.Context, string, remote.Handler) (remote.Subscription, error) {
	return remote.Group(nil), nil
}

func (mutedStore) SubscribeRemoved(context.Context, string, remote.Handler) (remote.Subscription, error) {
	return remote.Group(nil), nil
}

type harness struct {
	t       *testing.T
	engine  *rtdb.Engine
	session *Session
	sink    *notify.Recorder
}

func newEngine(t *testing.T) *rtdb.Engine {
	t.Helper()
	e := rtdb.NewMemory(nil)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// startSession signs uid in against engine through store (the engine itself
// when nil) and waits for the initial sync.
func startSession(t *testing.T, engine *rtdb.Engine, store remote.Store, uid string) *harness {
	t.Helper()
	if store == nil {
		store = engine
	}
	sink := &notify.Recorder{}
	s := NewSession(store, nil, sink, nil, WithClock(func() time.Time { return christmasEve }))
	require.NoError(t, s.Start(context.Background(), uid))
	engine.Flush()
	t.Cleanup(s.Stop)
	return &harness{t: t, engine: engine, session: s, sink: sink}
}

func (h *harness) selectList(value string) string {
	h.t.Helper()
	listID, err := h.session.Settings.SelectList(context.Background(), value)
	require.NoError(h.t, err)
	h.engine.Flush()
	return listID
}

func (h *harness) createProduct(p domain.Product) string {
	h.t.Helper()
	key, err := h.session.Catalog.CreateProduct(context.Background(), p)
	require.NoError(h.t, err)
	h.engine.Flush()
	return key
}

func (h *harness) read(path string) any {
	h.t.Helper()
	snap, err := h.engine.ReadOnce(context.Background(), path)
	require.NoError(h.t, err)
	return snap.Value
}

// requireInListMatchesCart checks catalog inList against cart membership.
func (h *harness) requireInListMatchesCart() {
	h.t.Helper()
	for _, e := range h.session.Catalog.Entries() {
		require.Equal(h.t, h.session.List.Has(e.Key), e.Product.InList,
			"catalog inList of %s must match cart membership", e.Key)
	}
	for _, e := range h.session.List.Entries() {
		require.True(h.t, h.session.Catalog.Has(e.Key), "cart entry %s missing from catalog", e.Key)
	}
}

func names(entries []domain.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Product.Name
	}
	return out
}
