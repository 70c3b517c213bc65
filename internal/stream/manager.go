package stream

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/id"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultHeartbeat   = 30 * time.Second
	DefaultQueueSize   = 256
	DefaultSendTimeout = 10 * time.Second
)

var errShuttingDown = errors.Unavailable("server is shutting down")

// Client is one connected stream. The connection's writer drains Outbound
// until Done is closed.
type Client struct {
	ConnectedAt time.Time
	ID          string
	UID         string

	outbound  chan Frame
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	subs map[string]remote.Subscription
}

// Outbound is the queue of frames waiting to be written.
func (c *Client) Outbound() <-chan Frame {
	return c.outbound
}

// Done is closed when the client is disconnected.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Track records a store subscription under the client's id for it. It
// returns false when the id is taken or the client is gone; the caller then
// cancels sub itself.
func (c *Client) Track(subID string, sub remote.Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		return false
	}
	if _, taken := c.subs[subID]; taken {
		return false
	}
	c.subs[subID] = sub
	return true
}

// Untrack cancels and forgets a subscription.
func (c *Client) Untrack(subID string) bool {
	c.mu.Lock()
	sub, ok := c.subs[subID]
	delete(c.subs, subID)
	c.mu.Unlock()

	if ok {
		sub.Cancel()
	}
	return ok
}

// Subscriptions returns the number of live subscriptions.
func (c *Client) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()

		for _, sub := range subs {
			sub.Cancel()
		}
		close(c.done)
	})
}

// Options tune a Manager.
type Options struct {
	Heartbeat time.Duration
	QueueSize int
	// SendTimeout is how long Send waits on a full queue before the client
	// is dropped.
	SendTimeout time.Duration
}

// Manager tracks connected stream clients, fans heartbeats out to them and
// disconnects clients that cannot keep up.
type Manager struct {
	logger      *slog.Logger
	heartbeat   time.Duration
	queueSize   int
	sendTimeout time.Duration

	mu       sync.RWMutex
	clients  map[string]*Client
	shutdown bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a manager.
func NewManager(logger *slog.Logger, opts Options) *Manager {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	return &Manager{
		logger:      logger,
		heartbeat:   opts.Heartbeat,
		queueSize:   opts.QueueSize,
		sendTimeout: opts.SendTimeout,
		clients:     make(map[string]*Client),
		stop:        make(chan struct{}),
	}
}

// Start runs the heartbeat loop until ctx is done or Shutdown is called.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.logger.Info("stream manager starting", "heartbeat", m.heartbeat)

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.heartbeatAll()
		case <-ctx.Done():
			m.closeAllClients()
			return
		case <-m.stop:
			return
		}
	}
}

// Shutdown stops accepting clients, disconnects everyone and waits for the
// heartbeat loop to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()

	m.stopOnce.Do(func() { close(m.stop) })
	m.closeAllClients()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("stream manager shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers a client for uid.
func (m *Manager) Connect(uid string) (*Client, error) {
	clientID, err := id.Generate(id.PrefixStream)
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		UID:         uid,
		ConnectedAt: time.Now(),
		outbound:    make(chan Frame, m.queueSize),
		done:        make(chan struct{}),
		subs:        make(map[string]remote.Subscription),
	}

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, errShuttingDown
	}
	m.clients[clientID] = client
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("stream client connected",
		slog.String("client_id", clientID),
		slog.String("uid", uid),
		slog.Int("total_clients", total))
	return client, nil
}

// Disconnect removes a client and cancels its subscriptions.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	total := len(m.clients)
	m.mu.Unlock()

	client.close()

	m.logger.Info("stream client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(client.ConnectedAt)),
		slog.Int("total_clients", total))
}

// Send queues f for c. On a full queue it waits up to the send timeout for
// the writer to catch up, so a burst such as the replay of a large
// collection is delivered whole. A client that stays full is disconnected:
// a dropped child event would leave its mirrors wrong for good.
func (m *Manager) Send(c *Client, f Frame) bool {
	select {
	case <-c.done:
		return false
	case c.outbound <- f:
		return true
	default:
	}

	timer := time.NewTimer(m.sendTimeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return false
	case c.outbound <- f:
		return true
	case <-timer.C:
		m.logger.Warn("stream client too slow, disconnecting",
			slog.String("client_id", c.ID),
			slog.String("frame", string(f.Type)),
			slog.Duration("waited", m.sendTimeout))
		m.Disconnect(c.ID)
		return false
	}
}

// heartbeatAll queues a heartbeat for every client whose queue has room. A
// client with a full queue is receiving frames anyway.
func (m *Manager) heartbeatAll() {
	for _, c := range m.snapshot() {
		select {
		case c.outbound <- Frame{Type: FrameHeartbeat}:
		default:
		}
	}
}

func (m *Manager) snapshot() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out
}

// Clients returns an iterator over connected clients.
func (m *Manager) Clients() iter.Seq[*Client] {
	return func(yield func(*Client) bool) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		for _, client := range m.clients {
			if !yield(client) {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	if len(clients) > 0 {
		m.logger.Info("all stream clients disconnected", "count", len(clients))
	}
}
