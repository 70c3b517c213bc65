// Package rtdb is a hierarchical realtime JSON tree: one-shot reads,
// set/update/remove writes and child added/changed/removed subscriptions.
// The Engine implements remote.Store, so the controllers can run against it
// embedded, in tests, or behind the syncd server.
package rtdb

import (
	"context"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
)

// Mutation is one persisted change: Value replaces the subtree at Path, nil deletes it.
type Mutation struct {
	Path  string
	Value any
}

// Persistence stores the tree between restarts.
type Persistence interface {
	Load(ctx context.Context) (map[string]any, error)
	Apply(ctx context.Context, muts []Mutation) error
	Close() error
}

type subscription struct {
	id    uint64
	kind  remote.Kind
	segs  []string
	deliv *remote.Queue
	eng   *Engine
}

// Cancel implements remote.Subscription.
func (s *subscription) Cancel() {
	s.eng.unsubscribe(s.id)
	s.deliv.Stop()
}

// Engine is the in-memory tree with optional persistence.
type Engine struct {
	logger  *slog.Logger
	persist Persistence
	tracker *tracker

	mu     sync.Mutex
	root   any
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

var _ remote.Store = (*Engine)(nil)

// NewMemory returns an engine with no persistence.
func NewMemory(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		logger:  logger,
		tracker: newTracker(),
		subs:    make(map[uint64]*subscription),
	}
}

// New loads the tree from p and returns an engine writing through to it.
func New(ctx context.Context, p Persistence, logger *slog.Logger) (*Engine, error) {
	e := NewMemory(logger)
	if p == nil {
		return e, nil
	}
	tree, err := p.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to load tree")
	}
	if len(tree) > 0 {
		e.root = tree
	}
	e.persist = p
	e.logger.Info("tree loaded", "top_level_keys", len(tree))
	return e, nil
}

// Close cancels every subscription and closes the persistence backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	subs := e.subs
	e.subs = map[uint64]*subscription{}
	e.mu.Unlock()

	for _, s := range subs {
		s.deliv.Stop()
	}
	if e.persist != nil {
		return e.persist.Close()
	}
	return nil
}

// Flush blocks until every queued event has been handled, including events
// produced by handlers while flushing. It must not be called from a handler.
func (e *Engine) Flush() {
	e.tracker.wait()
}

// ReadOnce returns the current value at path.
func (e *Engine) ReadOnce(ctx context.Context, path string) (remote.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return remote.Snapshot{}, err
	}
	segs, err := splitPath(path)
	if err != nil {
		return remote.Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return remote.Snapshot{}, errors.ErrUnavailable
	}
	return remote.Snapshot{Key: lastSegment(segs), Value: getAt(e.root, segs)}, nil
}

// Set replaces the value at path. A nil value removes it.
func (e *Engine) Set(ctx context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	v, err := normalizeValue(value)
	if err != nil {
		return err
	}
	return e.write(ctx, []write{{segs: segs, value: v}})
}

// Update merges fields into the node at path. Field keys may be relative
// paths; every field lands atomically.
func (e *Engine) Update(ctx context.Context, path string, fields map[string]any) error {
	base, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writes := make([]write, 0, len(fields))
	for _, k := range keys {
		rel, err := splitPath(k)
		if err != nil {
			return err
		}
		if len(rel) == 0 {
			return errors.Validationf("empty field key in update of %q", path)
		}
		v, err := normalizeValue(fields[k])
		if err != nil {
			return err
		}
		segs := append(append([]string{}, base...), rel...)
		writes = append(writes, write{segs: segs, value: v})
	}
	return e.write(ctx, writes)
}

// Remove deletes the node at path.
func (e *Engine) Remove(ctx context.Context, path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	return e.write(ctx, []write{{segs: segs}})
}

// SubscribeAdded replays the existing children of path, then reports new ones.
func (e *Engine) SubscribeAdded(ctx context.Context, path string, h remote.Handler) (remote.Subscription, error) {
	return e.subscribe(ctx, remote.ChildAdded, path, h)
}

// SubscribeChanged reports children whose value changes.
func (e *Engine) SubscribeChanged(ctx context.Context, path string, h remote.Handler) (remote.Subscription, error) {
	return e.subscribe(ctx, remote.ChildChanged, path, h)
}

// SubscribeRemoved reports removed children with their last value.
func (e *Engine) SubscribeRemoved(ctx context.Context, path string, h remote.Handler) (remote.Subscription, error) {
	return e.subscribe(ctx, remote.ChildRemoved, path, h)
}

// Subscribers returns the number of live subscriptions.
func (e *Engine) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

type write struct {
	segs  []string
	value any
}

func (e *Engine) write(ctx context.Context, writes []write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.ErrUnavailable
	}

	next := e.root
	for _, w := range writes {
		next = setAt(next, w.segs, w.value)
	}

	if e.persist != nil {
		muts := make([]Mutation, len(writes))
		for i, w := range writes {
			muts[i] = Mutation{Path: strings.Join(w.segs, "/"), Value: w.value}
		}
		if err := e.persist.Apply(ctx, muts); err != nil {
			e.logger.Error("persist write failed", "error", err)
			return errors.Wrap(err, errors.CodeInternal, "failed to persist write")
		}
	}

	prev := e.root
	e.root = next
	e.dispatch(prev, next, writes)
	return nil
}

// dispatch queues child events for every subscription a write touched.
// Caller holds e.mu.
func (e *Engine) dispatch(prev, next any, writes []write) {
	for _, s := range e.orderedSubs() {
		touched := false
		for _, w := range writes {
			if related(s.segs, w.segs) {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}

		before := children(prev, s.segs)
		after := children(next, s.segs)
		switch s.kind {
		case remote.ChildAdded:
			for _, k := range sortedKeys(after) {
				if _, ok := before[k]; !ok {
					s.deliv.Push(remote.Snapshot{Key: k, Value: after[k]})
				}
			}
		case remote.ChildChanged:
			for _, k := range sortedKeys(after) {
				old, ok := before[k]
				if ok && !reflect.DeepEqual(old, after[k]) {
					s.deliv.Push(remote.Snapshot{Key: k, Value: after[k]})
				}
			}
		case remote.ChildRemoved:
			for _, k := range sortedKeys(before) {
				if _, ok := after[k]; !ok {
					s.deliv.Push(remote.Snapshot{Key: k, Value: before[k]})
				}
			}
		}
	}
}

func (e *Engine) orderedSubs() []*subscription {
	out := make([]*subscription, 0, len(e.subs))
	for _, s := range e.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (e *Engine) subscribe(ctx context.Context, kind remote.Kind, path string, h remote.Handler) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errors.Validation("nil handler")
	}
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.ErrUnavailable
	}

	e.nextID++
	s := &subscription{
		id:    e.nextID,
		kind:  kind,
		segs:  segs,
		deliv: remote.NewQueue(h, e.tracker),
		eng:   e,
	}
	if kind == remote.ChildAdded {
		current := children(e.root, segs)
		for _, k := range sortedKeys(current) {
			s.deliv.Push(remote.Snapshot{Key: k, Value: current[k]})
		}
	}
	e.subs[s.id] = s
	return s, nil
}

func (e *Engine) unsubscribe(id uint64) {
	e.mu.Lock()
	delete(e.subs, id)
	e.mu.Unlock()
}

func lastSegment(segs []string) string {
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}
