package rtdb

import "sync"

// tracker counts queued plus running handler calls across an engine. It is
// the remote.Counter of every subscription queue.
type tracker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending int
}

func newTracker() *tracker {
	t := &tracker{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *tracker) Add(n int) {
	if n == 0 {
		return
	}
	t.mu.Lock()
	t.pending += n
	if t.pending <= 0 {
		t.pending = 0
		t.cond.Broadcast()
	}
	t.mu.Unlock()
}

func (t *tracker) wait() {
	t.mu.Lock()
	for t.pending > 0 {
		t.cond.Wait()
	}
	t.mu.Unlock()
}
