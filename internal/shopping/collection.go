package shopping

import (
	"context"
	"log/slog"
	"sync"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/notify"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
)

// Binder is a controller that mirrors a collection of the active list.
type Binder interface {
	// Bind clears the mirror, cancels the previous subscriptions and
	// subscribes to listID. When it returns the mirror holds the collection
	// as read from the store. An empty listID only clears.
	Bind(ctx context.Context, listID string) error
}

// WriteGuard decides whether the current user may write to the active list.
type WriteGuard interface {
	CanWrite() error
}

type allowAll struct{}

func (allowAll) CanWrite() error { return nil }

// collection is the mirroring core shared by the catalog and list
// controllers: one product collection of the bound list, kept in sync
// through child events.
type collection struct {
	name   string
	path   func(listID string) string
	store  remote.Store
	sink   notify.Sink
	logger *slog.Logger
	guard  WriteGuard

	mu     sync.Mutex
	listID string
	items  *mirror
	ready  bool
	gen    uint64
	subs   remote.Group
}

func newCollection(name string, path func(string) string, store remote.Store, sink notify.Sink, logger *slog.Logger) *collection {
	return &collection{
		name:   name,
		path:   path,
		store:  store,
		sink:   sink,
		logger: logger.With("collection", name),
		guard:  allowAll{},
		items:  newMirror(),
	}
}

// Bind implements Binder.
func (c *collection) Bind(ctx context.Context, listID string) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.subs
	c.subs = nil
	c.items.clear()
	c.ready = false
	c.listID = listID
	c.mu.Unlock()

	old.Cancel()
	if listID == "" {
		return nil
	}

	path := c.path(listID)
	subs, err := remote.Mirror(ctx, c.store, path, remote.Handlers{
		Added:   func(s remote.Snapshot) { c.onAdded(gen, s) },
		Changed: func(s remote.Snapshot) { c.onChanged(gen, s) },
		Removed: func(s remote.Snapshot) { c.onRemoved(gen, s) },
	})
	if err != nil {
		return c.fail(errors.Wrapf(err, errors.CodeUnavailable, "failed to subscribe to %s", c.name))
	}

	c.mu.Lock()
	if c.gen != gen {
		// Rebound while subscribing.
		c.mu.Unlock()
		subs.Cancel()
		return nil
	}
	c.subs = subs
	c.mu.Unlock()

	c.logger.Debug("subscribed", "list_id", listID, "path", path)

	snap, err := c.store.ReadOnce(ctx, path)
	if err != nil {
		return c.fail(errors.Wrapf(err, errors.CodeUnavailable, "failed to read %s", c.name))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil
	}
	for _, err := range c.items.seed(snap.Children()) {
		c.logger.Warn("dropping undecodable product", "error", err)
	}
	c.ready = true
	return nil
}

// unbind cancels subscriptions and forgets the list.
func (c *collection) unbind() {
	_ = c.Bind(context.Background(), "")
}

func (c *collection) onAdded(gen uint64, s remote.Snapshot) {
	var p domain.Product
	if err := s.Decode(&p); err != nil {
		c.logger.Warn("dropping undecodable product", "key", s.Key, "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.items.put(s.Key, p)
	}
}

func (c *collection) onChanged(gen uint64, s remote.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	if err := c.items.merge(s); err != nil {
		c.logger.Warn("dropping undecodable change", "key", s.Key, "error", err)
	}
}

func (c *collection) onRemoved(gen uint64, s remote.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.items.remove(s.Key)
	}
}

// AddProduct stores p in the local mirror.
func (c *collection) AddProduct(key string, p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.put(key, p)
}

// UpdateProduct merges u into the mirrored product. Unknown keys are ignored.
func (c *collection) UpdateProduct(key string, u domain.ProductUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.update(key, u)
}

// DeleteProduct drops key from the local mirror.
func (c *collection) DeleteProduct(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.remove(key)
}

// Clear empties the local mirror.
func (c *collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.clear()
}

// SetReady sets the readiness flag.
func (c *collection) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// Ready reports whether the mirror was seeded from the bound list.
func (c *collection) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// ListID returns the bound list.
func (c *collection) ListID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listID
}

// Has reports whether key is mirrored.
func (c *collection) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.has(key)
}

// Get returns the mirrored product for key.
func (c *collection) Get(key string) (domain.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.get(key)
}

// Count returns the number of mirrored products.
func (c *collection) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.len()
}

// Entries returns the mirrored products in arrival order.
func (c *collection) Entries() []domain.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.entries()
}

// target returns the bound list after checking write access.
func (c *collection) target() (string, error) {
	listID := c.ListID()
	if listID == "" {
		return "", c.fail(errors.Validation("no list selected"))
	}
	if err := c.guard.CanWrite(); err != nil {
		return "", c.fail(err)
	}
	return listID, nil
}

// fail shows err on the error sink and returns it.
func (c *collection) fail(err error) error {
	c.logger.Warn("operation failed", "error", err)
	c.sink.Error(err.Error())
	return err
}
