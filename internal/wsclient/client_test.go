package wsclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inesosoares6/shopping-list-v2/internal/auth"
	"github.com/inesosoares6/shopping-list-v2/internal/domain"
	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/notify"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/rtdb"
	"github.com/inesosoares6/shopping-list-v2/internal/server"
	"github.com/inesosoares6/shopping-list-v2/internal/shopping"
	"github.com/inesosoares6/shopping-list-v2/internal/stream"
)

const waitFor = 2 * time.Second

type backend struct {
	url     string
	engine  *rtdb.Engine
	streams *stream.Manager
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	return newBackendWith(t, stream.Options{Heartbeat: time.Hour})
}

func newBackendWith(t *testing.T, opts stream.Options) *backend {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	engine := rtdb.NewMemory(logger)
	tokens, err := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	streams := stream.NewManager(logger, opts)

	ts := httptest.NewServer(server.New(server.Deps{
		Store:    engine,
		Accounts: auth.NewAccounts(engine, tokens, logger),
		Streams:  streams,
		Logger:   logger,
	}))
	t.Cleanup(func() {
		_ = streams.Shutdown(context.Background())
		ts.Close()
		_ = engine.Close()
	})
	return &backend{url: ts.URL, engine: engine, streams: streams}
}

func newClient(t *testing.T, b *backend, tokenFile string, sink notify.Sink) *Client {
	t.Helper()
	c, err := New(Options{ServerURL: b.url, TokenFile: tokenFile, Timeout: waitFor, Sink: sink})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type events struct {
	mu   sync.Mutex
	keys []string
}

func (e *events) handle(s remote.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys = append(e.keys, s.Key)
}

func (e *events) get() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.keys...)
}

func TestClient_RegisterPersistsToken(t *testing.T) {
	b := newBackend(t)
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	ctx := context.Background()

	c := newClient(t, b, tokenFile, nil)
	_, ok := c.Current()
	assert.False(t, ok)

	ident, err := c.Register(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", ident.Email)

	again := newClient(t, b, tokenFile, nil)
	restored, ok := again.Current()
	require.True(t, ok)
	assert.Equal(t, ident, restored)
	assert.Equal(t, c.DeviceID(), again.DeviceID())

	require.NoError(t, again.Logout(ctx))
	_, ok = newClient(t, b, tokenFile, nil).Current()
	assert.False(t, ok)
}

func TestClient_LoginErrorsKeepTheirCode(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b, "", nil)

	_, err := c.Login(context.Background(), "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestClient_TreeOperations(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b, "", nil)
	ctx := context.Background()

	ident, err := c.Register(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "lists/lst-1", domain.ListMetadata{Name: "Groceries", Owner: ident.UID}))
	require.NoError(t, c.Update(ctx, "lists/lst-1", map[string]any{"catalog/prd-1/name": "Milk"}))

	snap, err := c.ReadOnce(ctx, "lists/lst-1/catalog/prd-1")
	require.NoError(t, err)
	assert.Equal(t, "prd-1", snap.Key)
	assert.Equal(t, map[string]any{"name": "Milk"}, snap.Value)

	require.NoError(t, c.Set(ctx, "lists/lst-1/catalog/prd-1", nil))
	snap, err = c.ReadOnce(ctx, "lists/lst-1/catalog/prd-1")
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	require.NoError(t, c.Remove(ctx, "lists/lst-1"))
	snap, err = b.engine.ReadOnce(ctx, "lists/lst-1")
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	_, err = c.ReadOnce(ctx, "users/usr-someone-else")
	assert.ErrorIs(t, err, errors.ErrForbidden)
}

func TestClient_SignedOutRequests(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b, "", nil)
	ctx := context.Background()

	_, err := c.ReadOnce(ctx, "lists")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	_, err = c.SubscribeAdded(ctx, "lists", func(remote.Snapshot) {})
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestClient_Subscriptions(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b, "", nil)
	ctx := context.Background()

	_, err := c.Register(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, b.engine.Set(ctx, "lists/lst-1/list/prd-1", map[string]any{"name": "Milk"}))

	var added, changed, removed events
	subA, err := c.SubscribeAdded(ctx, "lists/lst-1/list", added.handle)
	require.NoError(t, err)
	_, err = c.SubscribeChanged(ctx, "lists/lst-1/list", changed.handle)
	require.NoError(t, err)
	_, err = c.SubscribeRemoved(ctx, "lists/lst-1/list", removed.handle)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "lists/lst-1/list/prd-2", map[string]any{"name": "Eggs"}))
	require.NoError(t, c.Update(ctx, "lists/lst-1/list/prd-1", map[string]any{"completed": true}))
	require.NoError(t, c.Remove(ctx, "lists/lst-1/list/prd-2"))

	require.Eventually(t, func() bool { return len(removed.get()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []string{"prd-1", "prd-2"}, added.get())
	assert.Equal(t, []string{"prd-1"}, changed.get())
	assert.Equal(t, []string{"prd-2"}, removed.get())

	subA.Cancel()
	require.NoError(t, c.Set(ctx, "lists/lst-1/list/prd-3", map[string]any{"name": "Tea"}))
	require.Eventually(t, func() bool { return len(changed.get()) == 1 && len(removed.get()) == 1 }, waitFor, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"prd-1", "prd-2"}, added.get())
}

func TestClient_ReplaysCollectionLargerThanQueue(t *testing.T) {
	b := newBackendWith(t, stream.Options{Heartbeat: time.Hour, QueueSize: 8})
	sink := &notify.Recorder{}
	c := newClient(t, b, "", sink)
	ctx := context.Background()

	_, err := c.Register(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	const total = 300
	children := make(map[string]any, total)
	for i := 0; i < total; i++ {
		children[fmt.Sprintf("prd-%03d/name", i)] = fmt.Sprintf("Product %d", i)
	}
	require.NoError(t, b.engine.Update(ctx, "lists/lst-1/catalog", children))

	var added events
	_, err = c.SubscribeAdded(ctx, "lists/lst-1/catalog", added.handle)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(added.get()) == total }, 5*waitFor, 10*time.Millisecond)
	assert.Equal(t, "prd-000", added.get()[0])
	assert.Equal(t, "prd-299", added.get()[total-1])
	assert.Empty(t, sink.Errors())
	assert.Equal(t, 1, b.streams.ClientCount())
}

func TestClient_SubscribeForbidden(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b, "", nil)
	ctx := context.Background()

	_, err := c.Register(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	_, err = c.SubscribeChanged(ctx, "users/usr-other", func(remote.Snapshot) {})
	assert.ErrorIs(t, err, errors.ErrForbidden)
}

func TestClient_ConnectionLossIsReported(t *testing.T) {
	b := newBackend(t)
	sink := &notify.Recorder{}
	c := newClient(t, b, "", sink)
	ctx := context.Background()

	_, err := c.Register(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	_, err = c.SubscribeAdded(ctx, "lists", func(remote.Snapshot) {})
	require.NoError(t, err)

	require.NoError(t, b.streams.Shutdown(ctx))

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{MsgConnectionLost}, sink.Errors())
	}, waitFor, 10*time.Millisecond)
}

func TestClient_DrivesASession(t *testing.T) {
	b := newBackend(t)
	sink := &notify.Recorder{}
	c := newClient(t, b, "", sink)
	ctx := context.Background()

	session := shopping.NewSession(c, c, sink, nil)
	t.Cleanup(session.Stop)

	_, err := session.Register(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	require.Eventually(t, session.Settings.Ready, waitFor, 10*time.Millisecond)

	listID, err := session.Settings.SelectList(ctx, "Groceries")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return session.Settings.ListName() == "Groceries" && session.Catalog.ListID() == listID
	}, waitFor, 10*time.Millisecond)

	key, err := session.Catalog.CreateProduct(ctx, domain.Product{Name: "Milk", Selected: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return session.Catalog.Has(key) }, waitFor, 10*time.Millisecond)

	require.NoError(t, session.Catalog.MoveSelectedToList(ctx))
	require.Eventually(t, func() bool { return session.List.Has(key) }, waitFor, 10*time.Millisecond)

	snap, err := b.engine.ReadOnce(ctx, remote.CatalogItem(listID, key))
	require.NoError(t, err)
	var p domain.Product
	require.NoError(t, snap.Decode(&p))
	assert.True(t, p.InList)
	assert.False(t, p.Selected)
	assert.Contains(t, sink.Notifications(), shopping.MsgProductAdded)
}
