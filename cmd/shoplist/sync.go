package main

import (
	"context"
	"time"

	"github.com/inesosoares6/shopping-list-v2/internal/shopping"
)

const (
	settleTimeout = 3 * time.Second
	settlePoll    = 25 * time.Millisecond
)

// settle waits, for a bounded time, until the mirrors caught up with the
// store: settings loaded, metadata of every permitted list known and both
// collections of the active list seeded.
func settle(ctx context.Context, s *shopping.Session) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	await(ctx, s.Settings.Ready)
	await(ctx, func() bool {
		for listID := range s.Settings.Permissions() {
			if _, ok := s.Settings.Metadata(listID); !ok {
				return false
			}
		}
		return true
	})

	listID := s.Settings.ActiveList()
	if listID == "" {
		return
	}
	await(ctx, func() bool {
		return s.Catalog.ListID() == listID && s.List.ListID() == listID &&
			s.Catalog.Ready() && s.List.Ready()
	})
}

// await polls cond until it holds or ctx is done.
func await(ctx context.Context, cond func() bool) bool {
	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
