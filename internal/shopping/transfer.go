package shopping

import (
	"context"
	"time"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
	"github.com/inesosoares6/shopping-list-v2/internal/errors"
)

// UsernameSource provides the display name stamped on moved products.
type UsernameSource interface {
	Username() string
}

// Transfer moves products between the catalog and the cart. It is the only
// path that writes both collections, so the catalog inList flag and cart
// membership change together and in a fixed order.
type Transfer struct {
	catalog *Catalog
	list    *List
	users   UsernameSource
	now     func() time.Time
}

// NewTransfer wires catalog and list together.
func NewTransfer(catalog *Catalog, list *List, users UsernameSource, now func() time.Time) *Transfer {
	if now == nil {
		now = time.Now
	}
	t := &Transfer{catalog: catalog, list: list, users: users, now: now}
	catalog.transfer = t
	list.transfer = t
	return t
}

// AddedBy formats the owner stamp, "added by ana @ 24-12".
func (t *Transfer) AddedBy() string {
	return "added by " + t.users.Username() + " @ " + t.now().Format("02-01")
}

// ToList marks each catalog entry as in the cart, then writes the cart
// entry. Every entry is attempted; failures are joined.
func (t *Transfer) ToList(ctx context.Context, entries []domain.Entry) error {
	owner := t.AddedBy()
	var errs []error
	for _, e := range entries {
		u := domain.ProductUpdate{
			Selected: domain.Ptr(false),
			InList:   domain.Ptr(true),
			Owner:    domain.Ptr(owner),
		}
		// The cart add is the announced half of a move.
		if err := t.catalog.patch(ctx, e.Key, u, false); err != nil {
			errs = append(errs, err)
			continue
		}
		p := e.Product
		u.Apply(&p)
		if err := t.list.WriteProduct(ctx, e.Key, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromList clears the catalog inList flag, then removes the cart entry.
// A product missing from the catalog only loses its cart entry.
func (t *Transfer) FromList(ctx context.Context, key string) error {
	if t.catalog.Has(key) {
		if err := t.catalog.patch(ctx, key, domain.ProductUpdate{InList: domain.Ptr(false)}, false); err != nil {
			return err
		}
	}
	return t.list.remove(ctx, key)
}

// Discard deletes a product everywhere: cart entry first, then catalog.
func (t *Transfer) Discard(ctx context.Context, key string) error {
	if t.list.Has(key) {
		if err := t.list.remove(ctx, key); err != nil {
			return err
		}
	}
	return t.catalog.remove(ctx, key)
}
