package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/stream"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 64 << 10
)

// handleStream upgrades to a websocket and serves subscribe/unsubscribe
// frames until the connection or the client is closed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	uid := getUID(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client, err := s.streams.Connect(uid)
	if err != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(stream.ErrorFrame("", err))
		return
	}
	defer s.streams.Disconnect(client.ID)

	logger := s.logger.With("client_id", client.ID, "device", r.Header.Get(deviceHeader))

	go s.writeLoop(conn, client, logger)
	s.readLoop(r.Context(), conn, client, logger)
}

// writeLoop is the only writer of conn.
func (s *Server) writeLoop(conn *websocket.Conn, client *stream.Client, logger *slog.Logger) {
	defer conn.Close()

	for {
		select {
		case f := <-client.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				logger.Debug("stream write failed", "error", err)
				s.streams.Disconnect(client.ID)
				return
			}
		case <-client.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, client *stream.Client, logger *slog.Logger) {
	conn.SetReadLimit(maxFrameSize)

	for {
		var f stream.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("stream read ended", "error", err)
			}
			return
		}

		switch f.Type {
		case stream.FrameSubscribe:
			s.subscribe(ctx, client, f)
		case stream.FrameUnsubscribe:
			client.Untrack(f.ID)
		default:
			s.streams.Send(client, stream.ErrorFrame(f.ID, errors.Validationf("unknown frame type %q", f.Type)))
		}
	}
}

func (s *Server) subscribe(ctx context.Context, client *stream.Client, f stream.Frame) {
	fail := func(err error) {
		s.streams.Send(client, stream.ErrorFrame(f.ID, err))
	}

	if f.ID == "" || !f.Kind.Valid() {
		fail(errors.Validation("subscribe needs an id and a valid kind"))
		return
	}
	if err := checkAccess(client.UID, f.Path); err != nil {
		fail(err)
		return
	}

	subID, kind := f.ID, f.Kind
	sub, err := remote.Subscribe(ctx, s.store, kind, f.Path, func(snap remote.Snapshot) {
		s.streams.Send(client, stream.EventFrame(subID, kind, snap))
	})
	if err != nil {
		fail(err)
		return
	}
	if !client.Track(subID, sub) {
		sub.Cancel()
		fail(errors.NewCode(errors.CodeConflict, "subscription id already in use"))
		return
	}
	s.streams.Send(client, stream.Frame{Type: stream.FrameSubscribed, ID: subID})
}
