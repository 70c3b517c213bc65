package stream

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
)

type fakeSub struct{ cancelled atomic.Int32 }

func (f *fakeSub) Cancel() { f.cancelled.Add(1) }

func newManager(opts Options) *Manager {
	return NewManager(slog.New(slog.DiscardHandler), opts)
}

func TestManager_ConnectDisconnect(t *testing.T) {
	m := newManager(Options{})

	c, err := m.Connect("usr-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.ID, "ws-"))
	assert.Equal(t, "usr-1", c.UID)
	assert.Equal(t, 1, m.ClientCount())

	sub := &fakeSub{}
	require.True(t, c.Track("s1", sub))
	assert.False(t, c.Track("s1", &fakeSub{}), "duplicate id")

	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())
	assert.EqualValues(t, 1, sub.cancelled.Load())

	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}

	assert.False(t, c.Track("s2", &fakeSub{}), "closed client")
	m.Disconnect(c.ID)
}

func TestClient_Untrack(t *testing.T) {
	m := newManager(Options{})
	c, err := m.Connect("usr-1")
	require.NoError(t, err)

	sub := &fakeSub{}
	c.Track("s1", sub)
	assert.Equal(t, 1, c.Subscriptions())

	assert.True(t, c.Untrack("s1"))
	assert.False(t, c.Untrack("s1"))
	assert.EqualValues(t, 1, sub.cancelled.Load())
	assert.Equal(t, 0, c.Subscriptions())
}

func TestManager_SendQueuesFrames(t *testing.T) {
	m := newManager(Options{QueueSize: 4})
	c, err := m.Connect("usr-1")
	require.NoError(t, err)

	snap := remote.Snapshot{Key: "prd-1", Value: map[string]any{"name": "Milk"}}
	require.True(t, m.Send(c, EventFrame("s1", remote.ChildAdded, snap)))

	f := <-c.Outbound()
	assert.Equal(t, FrameEvent, f.Type)
	assert.Equal(t, "s1", f.ID)
	assert.Equal(t, remote.ChildAdded, f.Kind)
	assert.Equal(t, snap, f.Snapshot())
}

func TestManager_SlowClientIsDisconnected(t *testing.T) {
	m := newManager(Options{QueueSize: 2, SendTimeout: 20 * time.Millisecond})
	c, err := m.Connect("usr-1")
	require.NoError(t, err)

	assert.True(t, m.Send(c, Frame{Type: FrameHeartbeat}))
	assert.True(t, m.Send(c, Frame{Type: FrameHeartbeat}))
	assert.False(t, m.Send(c, Frame{Type: FrameHeartbeat}))

	assert.Equal(t, 0, m.ClientCount())
	<-c.Done()
	assert.False(t, m.Send(c, Frame{Type: FrameHeartbeat}))
}

func TestManager_BurstLargerThanQueueIsDelivered(t *testing.T) {
	m := newManager(Options{QueueSize: 4, SendTimeout: time.Second})
	c, err := m.Connect("usr-1")
	require.NoError(t, err)

	const total = 300
	got := make(chan int, 1)
	go func() {
		n := 0
		for f := range c.Outbound() {
			time.Sleep(100 * time.Microsecond)
			n++
			if f.Key == "last" {
				got <- n
				return
			}
		}
	}()

	for i := 0; i < total-1; i++ {
		require.True(t, m.Send(c, EventFrame("s1", remote.ChildAdded, remote.Snapshot{Key: "k"})))
	}
	require.True(t, m.Send(c, EventFrame("s1", remote.ChildAdded, remote.Snapshot{Key: "last"})))

	assert.Equal(t, total, <-got)
	assert.Equal(t, 1, m.ClientCount())
}

func TestManager_HeartbeatSkipsFullQueue(t *testing.T) {
	m := newManager(Options{QueueSize: 1, Heartbeat: 5 * time.Millisecond, SendTimeout: time.Hour})
	full, err := m.Connect("usr-1")
	require.NoError(t, err)
	idle, err := m.Connect("usr-2")
	require.NoError(t, err)
	require.True(t, m.Send(full, Frame{Type: FrameSubscribed, ID: "s1"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	select {
	case f := <-idle.Outbound():
		assert.Equal(t, FrameHeartbeat, f.Type)
	case <-time.After(time.Second):
		t.Fatal("idle client got no heartbeat")
	}
	assert.Equal(t, 2, m.ClientCount())
	f := <-full.Outbound()
	assert.Equal(t, FrameSubscribed, f.Type)
}

func TestManager_HeartbeatsReachEveryClient(t *testing.T) {
	m := newManager(Options{Heartbeat: 10 * time.Millisecond})
	a, err := m.Connect("usr-1")
	require.NoError(t, err)
	b, err := m.Connect("usr-2")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	for _, c := range []*Client{a, b} {
		select {
		case f := <-c.Outbound():
			assert.Equal(t, FrameHeartbeat, f.Type)
		case <-time.After(time.Second):
			t.Fatal("no heartbeat")
		}
	}
}

func TestManager_Shutdown(t *testing.T) {
	m := newManager(Options{Heartbeat: time.Hour})
	c, err := m.Connect("usr-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	<-c.Done()
	assert.Equal(t, 0, m.ClientCount())

	_, err = m.Connect("usr-2")
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}

func TestManager_ClientsIterator(t *testing.T) {
	m := newManager(Options{})
	for _, uid := range []string{"usr-1", "usr-2", "usr-3"} {
		_, err := m.Connect(uid)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for c := range m.Clients() {
		seen[c.UID] = true
	}
	assert.Len(t, seen, 3)
}

func TestErrorFrame(t *testing.T) {
	f := ErrorFrame("s1", errors.Forbidden("no access to users/usr-2"))
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, errors.CodeForbidden, f.Error.Code)
	assert.Equal(t, "no access to users/usr-2", f.Error.Message)

	f = ErrorFrame("", assert.AnError)
	assert.Equal(t, errors.CodeInternal, f.Error.Code)
}
