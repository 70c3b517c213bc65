package wsclient

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/stream"
)

// MsgConnectionLost is shown when the stream drops. Live mirrors stop
// updating until the session is restarted.
const MsgConnectionLost = "Connection to the store lost"

const writeWait = 10 * time.Second

type route struct {
	id      string
	queue   *remote.Queue
	ack     chan error
	settled bool
}

// conn is one websocket to the server with the routes of its subscriptions.
type conn struct {
	ws     *websocket.Conn
	client *Client

	writeMu sync.Mutex

	mu     sync.Mutex
	routes map[string]*route
	nextID uint64

	done      chan struct{}
	closeOnce sync.Once
	closing   atomic.Bool
}

// stream returns the live connection, dialing one when needed.
func (c *Client) stream(ctx context.Context) (*conn, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil && !c.conn.closed() {
		return c.conn, nil
	}

	token := c.token()
	if token == "" {
		return nil, errors.Unauthorized("not signed in")
	}

	wsURL := *c.base
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path += "/v1/stream"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set(deviceHeader, c.DeviceID())

	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}
	ws, resp, err := dialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, errors.NewCode(errors.CodeFromStatus(resp.StatusCode), "stream connection refused")
		}
		return nil, errors.Unavailable("store server unreachable").WithCause(err)
	}

	cn := &conn{
		ws:     ws,
		client: c,
		routes: make(map[string]*route),
		done:   make(chan struct{}),
	}
	go cn.readLoop()
	c.conn = cn
	c.logger.Debug("stream connected", "url", wsURL.String())
	return cn, nil
}

// SubscribeAdded implements remote.Subscriber.
func (c *Client) SubscribeAdded(ctx context.Context, path string, h remote.Handler) (remote.Subscription, error) {
	return c.subscribe(ctx, remote.ChildAdded, path, h)
}

// SubscribeChanged implements remote.Subscriber.
func (c *Client) SubscribeChanged(ctx context.Context, path string, h remote.Handler) (remote.Subscription, error) {
	return c.subscribe(ctx, remote.ChildChanged, path, h)
}

// SubscribeRemoved implements remote.Subscriber.
func (c *Client) SubscribeRemoved(ctx context.Context, path string, h remote.Handler) (remote.Subscription, error) {
	return c.subscribe(ctx, remote.ChildRemoved, path, h)
}

func (c *Client) subscribe(ctx context.Context, kind remote.Kind, path string, h remote.Handler) (remote.Subscription, error) {
	if h == nil {
		return nil, errors.Validation("nil handler")
	}
	cn, err := c.stream(ctx)
	if err != nil {
		return nil, err
	}

	r := cn.add(h)
	sub := &subscription{cn: cn, id: r.id}
	if err := cn.send(stream.Frame{Type: stream.FrameSubscribe, ID: r.id, Kind: kind, Path: path}); err != nil {
		cn.drop(r.id)
		return nil, errors.Unavailable(MsgConnectionLost).WithCause(err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case err := <-r.ack:
		if err != nil {
			cn.drop(r.id)
			return nil, err
		}
		return sub, nil
	case <-cn.done:
		cn.drop(r.id)
		return nil, errors.Unavailable(MsgConnectionLost)
	case <-ctx.Done():
		sub.Cancel()
		return nil, ctx.Err()
	case <-timer.C:
		sub.Cancel()
		return nil, errors.Unavailable("subscribe timed out")
	}
}

type subscription struct {
	cn   *conn
	id   string
	once sync.Once
}

// Cancel implements remote.Subscription.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		if s.cn.drop(s.id) && !s.cn.closed() {
			_ = s.cn.send(stream.Frame{Type: stream.FrameUnsubscribe, ID: s.id})
		}
	})
}

func (cn *conn) add(h remote.Handler) *route {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.nextID++
	r := &route{
		id:    "s" + strconv.FormatUint(cn.nextID, 10),
		queue: remote.NewQueue(h, nil),
		ack:   make(chan error, 1),
	}
	cn.routes[r.id] = r
	return r
}

func (cn *conn) drop(id string) bool {
	cn.mu.Lock()
	r, ok := cn.routes[id]
	delete(cn.routes, id)
	cn.mu.Unlock()

	if ok {
		r.queue.Stop()
	}
	return ok
}

// settle completes a pending subscribe. It reports false when the route is
// unknown or already settled.
func (cn *conn) settle(id string, err error) bool {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	r, ok := cn.routes[id]
	if !ok || r.settled {
		return false
	}
	r.settled = true
	r.ack <- err
	return true
}

func (cn *conn) deliver(id string, snap remote.Snapshot) {
	cn.mu.Lock()
	r := cn.routes[id]
	cn.mu.Unlock()
	if r != nil {
		r.queue.Push(snap)
	}
}

func (cn *conn) send(f stream.Frame) error {
	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()
	_ = cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return cn.ws.WriteJSON(f)
}

func (cn *conn) closed() bool {
	select {
	case <-cn.done:
		return true
	default:
		return false
	}
}

// readLoop routes server frames; it never runs handlers itself.
func (cn *conn) readLoop() {
	for {
		var f stream.Frame
		if err := cn.ws.ReadJSON(&f); err != nil {
			cn.lost(err)
			return
		}

		switch f.Type {
		case stream.FrameEvent:
			cn.deliver(f.ID, f.Snapshot())
		case stream.FrameSubscribed:
			cn.settle(f.ID, nil)
		case stream.FrameError:
			err := errors.NewCode(errors.CodeInternal, "stream error")
			if f.Error != nil {
				err = errors.NewCode(f.Error.Code, f.Error.Message)
			}
			if !cn.settle(f.ID, err) {
				cn.client.sink.Error(err.Error())
			}
		case stream.FrameHeartbeat:
		default:
			cn.client.logger.Debug("ignoring stream frame", "type", f.Type)
		}
	}
}

// lost tears the connection down. Only an unexpected end is reported.
func (cn *conn) lost(err error) {
	cn.closeOnce.Do(func() {
		close(cn.done)
		_ = cn.ws.Close()

		cn.mu.Lock()
		routes := cn.routes
		cn.routes = make(map[string]*route)
		cn.mu.Unlock()
		for _, r := range routes {
			r.queue.Stop()
		}

		c := cn.client
		c.connMu.Lock()
		if c.conn == cn {
			c.conn = nil
		}
		c.connMu.Unlock()

		if !cn.closing.Load() {
			c.logger.Warn("stream connection lost", "error", err)
			c.sink.Error(MsgConnectionLost)
		}
	})
}

func (cn *conn) close() {
	cn.closing.Store(true)
	cn.writeMu.Lock()
	_ = cn.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	cn.writeMu.Unlock()
	cn.lost(nil)
}
