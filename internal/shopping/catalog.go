package shopping

import (
	"context"
	"log/slog"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/id"
	"github.com/inesosoares6/shopping-list-v2/internal/normalize"
	"github.com/inesosoares6/shopping-list-v2/internal/notify"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/validation"
)

// Notifications shown after confirmed product writes.
const (
	MsgProductAdded   = "Product added!"
	MsgProductUpdated = "Product updated!"
	MsgProductDeleted = "Product deleted!"
	MsgCartEmptied    = "Cart emptied!"
)

// sortable catalog fields.
var sortFields = map[string]bool{
	domain.FieldName:     true,
	domain.FieldKeywords: true,
	domain.FieldNotes:    true,
	domain.FieldOwner:    true,
}

// Catalog mirrors lists/{listId}/catalog of the active list: every known
// product, whether or not it is in the cart.
type Catalog struct {
	*collection

	validator *validation.Validator
	transfer  *Transfer

	// Guarded by collection.mu.
	search string
	sort   string
}

// NewCatalog creates a catalog controller. It mirrors nothing until bound.
func NewCatalog(store remote.Store, sink notify.Sink, logger *slog.Logger) *Catalog {
	return &Catalog{
		collection: newCollection("catalog", remote.Catalog, store, sink, logger),
		validator:  validation.New(),
		sort:       domain.FieldName,
	}
}

// SetSearch sets the free-text filter. Empty disables filtering.
func (c *Catalog) SetSearch(search string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = search
}

// Search returns the current filter text.
func (c *Catalog) Search() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search
}

// SetSort selects the field views are ordered by.
func (c *Catalog) SetSort(field string) error {
	if !sortFields[field] {
		return errors.Validationf("cannot sort by %q", field)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sort = field
	return nil
}

// SortField returns the field views are ordered by.
func (c *Catalog) SortField() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sort
}

// Sorted returns every product ordered by the sort field, compared without
// case or diacritics.
func (c *Catalog) Sorted() []domain.Entry {
	c.mu.Lock()
	entries, field := c.items.entries(), c.sort
	c.mu.Unlock()
	return sortEntries(entries, field, normalize.Diacritics)
}

// Filtered returns Sorted narrowed to products whose name or keywords
// contain the search text.
func (c *Catalog) Filtered() []domain.Entry {
	sorted := c.Sorted()
	search := c.Search()
	if search == "" {
		return sorted
	}
	return filterEntries(sorted, func(p domain.Product) bool { return matchesSearch(p, search) })
}

// Active returns Filtered without completed products. This is the default view.
func (c *Catalog) Active() []domain.Entry {
	return filterEntries(c.Filtered(), func(p domain.Product) bool { return !p.Completed })
}

// Favorites returns sorted favorites, ignoring the search text.
func (c *Catalog) Favorites() []domain.Entry {
	return filterEntries(c.Sorted(), func(p domain.Product) bool { return p.Favorite })
}

// Selected returns sorted selected products, ignoring the search text.
func (c *Catalog) Selected() []domain.Entry {
	return filterEntries(c.Sorted(), func(p domain.Product) bool { return p.Selected })
}

// CreateProduct writes p under a fresh key and returns the key.
func (c *Catalog) CreateProduct(ctx context.Context, p domain.Product) (string, error) {
	key, err := id.Generate(id.PrefixProduct)
	if err != nil {
		return "", c.fail(errors.Wrap(err, errors.CodeInternal, "failed to generate product key"))
	}
	if err := c.WriteProduct(ctx, key, p); err != nil {
		return "", err
	}
	return key, nil
}

// WriteProduct overwrites the catalog product at key.
func (c *Catalog) WriteProduct(ctx context.Context, key string, p domain.Product) error {
	if err := c.validator.Validate(p); err != nil {
		return c.fail(err)
	}
	listID, err := c.target()
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, remote.CatalogItem(listID, key), p); err != nil {
		return c.fail(err)
	}
	c.sink.Notify(MsgProductAdded)
	return nil
}

// PatchProduct merges u into the catalog product at key. The product must be
// mirrored. Changes touching only UI flags are not announced.
func (c *Catalog) PatchProduct(ctx context.Context, key string, u domain.ProductUpdate) error {
	return c.patch(ctx, key, u, !u.OnlyTransient())
}

func (c *Catalog) patch(ctx context.Context, key string, u domain.ProductUpdate, announce bool) error {
	if u.IsEmpty() {
		return nil
	}
	if err := c.validator.Validate(u); err != nil {
		return c.fail(err)
	}
	listID, err := c.target()
	if err != nil {
		return err
	}
	if !c.Has(key) {
		return c.fail(errors.NotFoundf("product %s is not in the catalog", key))
	}
	if err := c.store.Update(ctx, remote.CatalogItem(listID, key), u.Fields()); err != nil {
		return c.fail(err)
	}
	if announce {
		c.sink.Notify(MsgProductUpdated)
	}
	return nil
}

// RemoveProduct deletes the catalog product at key, taking it out of the
// cart first when it is there.
func (c *Catalog) RemoveProduct(ctx context.Context, key string) error {
	if c.transfer != nil {
		return c.transfer.Discard(ctx, key)
	}
	return c.remove(ctx, key)
}

func (c *Catalog) remove(ctx context.Context, key string) error {
	listID, err := c.target()
	if err != nil {
		return err
	}
	if err := c.store.Remove(ctx, remote.CatalogItem(listID, key)); err != nil {
		return c.fail(err)
	}
	c.sink.Notify(MsgProductDeleted)
	return nil
}

// MoveSelectedToList puts every selected product into the cart.
func (c *Catalog) MoveSelectedToList(ctx context.Context) error {
	selected := c.Selected()
	if len(selected) == 0 {
		return nil
	}
	if c.transfer == nil {
		return c.fail(errors.Internal("catalog is not wired to a list"))
	}
	return c.transfer.ToList(ctx, selected)
}
