package remote

import "sync"

// Counter observes a Queue's backlog: +1 per accepted event, -1 once its
// handler call returned or the event was dropped.
type Counter interface {
	Add(n int)
}

// Queue hands the events of one subscription to its handler on a dedicated
// goroutine, in push order. Push never blocks, so a slow handler cannot
// stall the producer, and handlers may call back into the store.
type Queue struct {
	handler Handler
	counter Counter

	mu      sync.Mutex
	pending []Snapshot
	signal  chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewQueue starts the delivery goroutine for h. counter may be nil.
func NewQueue(h Handler, counter Counter) *Queue {
	q := &Queue{
		handler: h,
		counter: counter,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Push queues s. Events pushed after Stop are ignored.
func (q *Queue) Push(s Snapshot) {
	q.mu.Lock()
	select {
	case <-q.done:
		q.mu.Unlock()
		return
	default:
	}
	q.pending = append(q.pending, s)
	q.count(1)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Stop ends delivery and drops queued events. A handler call in progress
// finishes.
func (q *Queue) Stop() {
	q.once.Do(func() {
		q.mu.Lock()
		close(q.done)
		dropped := len(q.pending)
		q.pending = nil
		q.mu.Unlock()
		q.count(-dropped)
	})
}

func (q *Queue) run() {
	for {
		select {
		case <-q.done:
			return
		case <-q.signal:
		}
		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			s := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()

			select {
			case <-q.done:
				q.count(-1)
				return
			default:
			}
			q.handler(s)
			q.count(-1)
		}
	}
}

func (q *Queue) count(n int) {
	if q.counter != nil && n != 0 {
		q.counter.Add(n)
	}
}
