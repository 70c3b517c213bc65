// Package stream carries child events from the store server to connected
// clients over one websocket per client. It defines the frame protocol both
// ends speak and the server-side registry of connected clients.
package stream

import (
	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
)

// FrameType names a websocket message.
type FrameType string

const (
	// Client to server.
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"

	// Server to client.
	FrameSubscribed FrameType = "subscribed"
	FrameEvent      FrameType = "event"
	FrameHeartbeat  FrameType = "heartbeat"
	FrameError      FrameType = "error"
)

// Frame is the single JSON message shape in both directions. ID is the
// subscription id picked by the client; server frames about a subscription
// echo it back.
type Frame struct {
	Type  FrameType     `json:"type"`
	ID    string        `json:"id,omitempty"`
	Kind  remote.Kind   `json:"kind,omitempty"`
	Path  string        `json:"path,omitempty"`
	Key   string        `json:"key,omitempty"`
	Value any           `json:"value,omitempty"`
	Error *errors.Error `json:"error,omitempty"`
}

// EventFrame wraps a child event of subscription id.
func EventFrame(id string, kind remote.Kind, snap remote.Snapshot) Frame {
	return Frame{Type: FrameEvent, ID: id, Kind: kind, Key: snap.Key, Value: snap.Value}
}

// ErrorFrame reports a failure, tied to subscription id when not empty.
func ErrorFrame(id string, err error) Frame {
	var e *errors.Error
	if !errors.As(err, &e) {
		e = errors.Internal(err.Error())
	}
	return Frame{Type: FrameError, ID: id, Error: errors.NewCode(e.Code, e.Message)}
}

// Snapshot returns the event payload of an event frame.
func (f Frame) Snapshot() remote.Snapshot {
	return remote.Snapshot{Key: f.Key, Value: f.Value}
}
