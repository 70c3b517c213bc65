// Package remote defines the capability the controllers need from the
// realtime store: one-shot reads, child-event subscriptions and
// set/update/remove writes against slash-separated paths.
//
// Implementations: rtdb.Engine (embedded, also the test fake) and
// wsclient.Client (network).
package remote

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind identifies a child event.
type Kind string

const (
	ChildAdded   Kind = "child_added"
	ChildChanged Kind = "child_changed"
	ChildRemoved Kind = "child_removed"
)

// Valid reports whether k is one of the three child event kinds.
func (k Kind) Valid() bool {
	return k == ChildAdded || k == ChildChanged || k == ChildRemoved
}

// Snapshot is the value of one node. For child events Key is the child's
// key and Value its full current value (the previous value for removals).
type Snapshot struct {
	Key   string
	Value any
}

// Exists reports whether the node holds a value.
func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Decode converts the generic value into dst (a pointer), going through
// JSON the same way values travel over the wire.
func (s Snapshot) Decode(dst any) error {
	if s.Value == nil {
		return nil
	}
	data, err := json.Marshal(s.Value)
	if err != nil {
		return fmt.Errorf("encode snapshot %q: %w", s.Key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode snapshot %q: %w", s.Key, err)
	}
	return nil
}

// Children returns the child keys of a map value, nil for scalars.
func (s Snapshot) Children() map[string]any {
	m, _ := s.Value.(map[string]any)
	return m
}

// Handler receives child events. Calls for one subscription are serialized
// and arrive in write order.
type Handler func(Snapshot)

// Subscription is a live child-event registration.
type Subscription interface {
	Cancel()
}

// Reader performs one-shot reads.
type Reader interface {
	ReadOnce(ctx context.Context, path string) (Snapshot, error)
}

// Subscriber registers child-event handlers. SubscribeAdded first replays
// every existing child of path as an added event, then reports new ones.
type Subscriber interface {
	SubscribeAdded(ctx context.Context, path string, h Handler) (Subscription, error)
	SubscribeChanged(ctx context.Context, path string, h Handler) (Subscription, error)
	SubscribeRemoved(ctx context.Context, path string, h Handler) (Subscription, error)
}

// Writer mutates the tree. Set overwrites, Update merges the given fields
// (keys may themselves be relative paths), Remove deletes the node.
type Writer interface {
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
}

// Store is the full capability.
type Store interface {
	Reader
	Subscriber
	Writer
}

// Subscribe registers h for kind.
func Subscribe(ctx context.Context, s Subscriber, kind Kind, path string, h Handler) (Subscription, error) {
	switch kind {
	case ChildAdded:
		return s.SubscribeAdded(ctx, path, h)
	case ChildChanged:
		return s.SubscribeChanged(ctx, path, h)
	case ChildRemoved:
		return s.SubscribeRemoved(ctx, path, h)
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}

// Group cancels several subscriptions together.
type Group []Subscription

// Cancel cancels every member.
func (g Group) Cancel() {
	for _, s := range g {
		if s != nil {
			s.Cancel()
		}
	}
}

// Handlers bundles the three child callbacks of one mirrored collection.
// Nil callbacks are not registered.
type Handlers struct {
	Added   Handler
	Changed Handler
	Removed Handler
}

// Mirror subscribes every non-nil handler of hs on path. On error the
// subscriptions made so far are cancelled.
func Mirror(ctx context.Context, s Subscriber, path string, hs Handlers) (Group, error) {
	var g Group
	for _, reg := range []struct {
		kind Kind
		h    Handler
	}{
		{ChildAdded, hs.Added},
		{ChildChanged, hs.Changed},
		{ChildRemoved, hs.Removed},
	} {
		if reg.h == nil {
			continue
		}
		sub, err := Subscribe(ctx, s, reg.kind, path, reg.h)
		if err != nil {
			g.Cancel()
			return nil, err
		}
		g = append(g, sub)
	}
	return g, nil
}
