package shopping

import (
	"context"
	"log/slog"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/normalize"
	"github.com/inesosoares6/shopping-list-v2/internal/notify"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/validation"
)

// List mirrors lists/{listId}/list of the active list: the cart.
type List struct {
	*collection

	validator *validation.Validator
	transfer  *Transfer
	// Sorting folds case only, unlike the catalog.
	policy normalize.Policy

	// Guarded by collection.mu: keys with an add in flight.
	adding map[string]struct{}
}

// NewList creates a list controller. It mirrors nothing until bound.
func NewList(store remote.Store, sink notify.Sink, logger *slog.Logger) *List {
	return &List{
		collection: newCollection("list", remote.Cart, store, sink, logger),
		validator:  validation.New(),
		policy:     normalize.CaseOnly,
		adding:     make(map[string]struct{}),
	}
}

// Sorted returns the cart ordered by name, case-insensitively.
func (l *List) Sorted() []domain.Entry {
	return sortEntries(l.Entries(), domain.FieldName, l.policy)
}

// Pending returns sorted products not yet checked off.
func (l *List) Pending() []domain.Entry {
	return filterEntries(l.Sorted(), func(p domain.Product) bool { return !p.Completed })
}

// Completed returns sorted products already checked off.
func (l *List) Completed() []domain.Entry {
	return filterEntries(l.Sorted(), func(p domain.Product) bool { return p.Completed })
}

// WriteProduct puts p into the cart under key. Writing a key that is
// already in the cart, or already being written, does nothing.
func (l *List) WriteProduct(ctx context.Context, key string, p domain.Product) error {
	if err := l.validator.Validate(p); err != nil {
		return l.fail(err)
	}
	listID, err := l.target()
	if err != nil {
		return err
	}

	l.mu.Lock()
	_, pending := l.adding[key]
	if pending || l.items.has(key) {
		l.mu.Unlock()
		l.logger.Debug("product already in list", "key", key)
		return nil
	}
	l.adding[key] = struct{}{}
	l.mu.Unlock()

	err = l.store.Set(ctx, remote.CartItem(listID, key), p)

	l.mu.Lock()
	delete(l.adding, key)
	if err == nil && l.listID == listID {
		// Confirmed: mirror it now so a repeated add is skipped before the echo.
		l.items.put(key, p)
	}
	l.mu.Unlock()

	if err != nil {
		return l.fail(err)
	}
	l.sink.Notify(MsgProductAdded)
	return nil
}

// PatchProduct merges u into the cart product at key. The product must be
// mirrored. Changes touching only UI flags, such as checking a product off,
// are not announced.
func (l *List) PatchProduct(ctx context.Context, key string, u domain.ProductUpdate) error {
	if u.IsEmpty() {
		return nil
	}
	if err := l.validator.Validate(u); err != nil {
		return l.fail(err)
	}
	listID, err := l.target()
	if err != nil {
		return err
	}
	if !l.Has(key) {
		return l.fail(errors.NotFoundf("product %s is not in the cart", key))
	}
	if err := l.store.Update(ctx, remote.CartItem(listID, key), u.Fields()); err != nil {
		return l.fail(err)
	}
	if !u.OnlyTransient() {
		l.sink.Notify(MsgProductUpdated)
	}
	return nil
}

// RemoveProduct takes key out of the cart, clearing the catalog flag first.
// cartClear selects the bulk confirmation message.
func (l *List) RemoveProduct(ctx context.Context, key string, cartClear bool) error {
	if l.transfer == nil {
		return l.fail(errors.Internal("list is not wired to a catalog"))
	}
	msg := MsgProductDeleted
	if cartClear {
		msg = MsgCartEmptied
	}
	if err := l.transfer.FromList(ctx, key); err != nil {
		return err
	}
	l.sink.Notify(msg)
	return nil
}

// ClearCart removes every completed product from the cart.
func (l *List) ClearCart(ctx context.Context) error {
	if l.transfer == nil {
		return l.fail(errors.Internal("list is not wired to a catalog"))
	}
	completed := l.Completed()
	if len(completed) == 0 {
		return nil
	}
	var errs []error
	for _, e := range completed {
		if err := l.transfer.FromList(ctx, e.Key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	l.sink.Notify(MsgCartEmptied)
	return nil
}

// remove deletes the cart entry without touching the catalog.
func (l *List) remove(ctx context.Context, key string) error {
	listID, err := l.target()
	if err != nil {
		return err
	}
	if err := l.store.Remove(ctx, remote.CartItem(listID, key)); err != nil {
		return l.fail(err)
	}
	return nil
}
