package shopping

import (
	"sort"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
	"github.com/inesosoares6/shopping-list-v2/internal/normalize"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
)

// mirror is the local copy of one remote product collection. Keys keep
// arrival order, which breaks sort ties.
type mirror struct {
	order    []string
	products map[string]domain.Product
	// Keys written since the last clear, by events or local ops.
	touched map[string]struct{}
}

func newMirror() *mirror {
	return &mirror{
		products: make(map[string]domain.Product),
		touched:  make(map[string]struct{}),
	}
}

func (m *mirror) get(key string) (domain.Product, bool) {
	p, ok := m.products[key]
	return p, ok
}

func (m *mirror) has(key string) bool {
	_, ok := m.products[key]
	return ok
}

func (m *mirror) put(key string, p domain.Product) {
	m.touched[key] = struct{}{}
	if _, ok := m.products[key]; !ok {
		m.order = append(m.order, key)
	}
	m.products[key] = p
}

func (m *mirror) update(key string, u domain.ProductUpdate) bool {
	p, ok := m.products[key]
	if !ok {
		return false
	}
	u.Apply(&p)
	m.products[key] = p
	return true
}

func (m *mirror) remove(key string) {
	m.touched[key] = struct{}{}
	if _, ok := m.products[key]; !ok {
		return
	}
	delete(m.products, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *mirror) clear() {
	m.order = nil
	m.products = make(map[string]domain.Product)
	m.touched = make(map[string]struct{})
}

func (m *mirror) len() int {
	return len(m.products)
}

// entries returns every product in arrival order.
func (m *mirror) entries() []domain.Entry {
	out := make([]domain.Entry, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, domain.Entry{Key: k, Product: m.products[k]})
	}
	return out
}

// merge replaces the mirrored product with a child-changed snapshot. The
// snapshot carries the whole child, so a field it lacks is unset remotely.
func (m *mirror) merge(s remote.Snapshot) error {
	var p domain.Product
	if err := s.Decode(&p); err != nil {
		return err
	}
	m.put(s.Key, p)
	return nil
}

// seed fills the mirror from a full read of the collection, in key order.
// Keys an event already wrote keep that state; later events converge them.
func (m *mirror) seed(children map[string]any) []error {
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		if _, ok := m.touched[k]; ok {
			continue
		}
		var p domain.Product
		if err := (remote.Snapshot{Key: k, Value: children[k]}).Decode(&p); err != nil {
			errs = append(errs, err)
			continue
		}
		m.put(k, p)
	}
	return errs
}

// sortEntries orders entries by field under policy. Ties keep input order.
func sortEntries(entries []domain.Entry, field string, policy normalize.Policy) []domain.Entry {
	out := make([]domain.Entry, len(entries))
	copy(out, entries)
	keys := make([]string, len(out))
	for i, e := range out {
		keys[i] = policy.Apply(e.Product.Text(field))
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })

	sorted := make([]domain.Entry, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

// filterEntries keeps entries matching keep, preserving order.
func filterEntries(entries []domain.Entry, keep func(domain.Product) bool) []domain.Entry {
	out := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		if keep(e.Product) {
			out = append(out, e)
		}
	}
	return out
}

// matchesSearch reports whether name or keywords contain search, both
// sides folded with diacritics removed.
func matchesSearch(p domain.Product, search string) bool {
	return normalize.Contains(p.Name, search) || normalize.Contains(p.Keywords, search)
}
