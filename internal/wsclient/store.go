package wsclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/inesosoares6/shopping-list-v2/internal/remote"
)

// dbPath maps a tree path to its REST resource, escaping every segment.
func dbPath(path string) string {
	segs := remote.Split(path)
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "/v1/db/" + strings.Join(segs, "/")
}

// ReadOnce implements remote.Reader.
func (c *Client) ReadOnce(ctx context.Context, path string) (remote.Snapshot, error) {
	var value any
	if err := c.do(ctx, http.MethodGet, dbPath(path), nil, &value); err != nil {
		return remote.Snapshot{}, err
	}
	segs := remote.Split(path)
	key := ""
	if len(segs) > 0 {
		key = segs[len(segs)-1]
	}
	return remote.Snapshot{Key: key, Value: value}, nil
}

// Set implements remote.Writer.
func (c *Client) Set(ctx context.Context, path string, value any) error {
	return c.do(ctx, http.MethodPut, dbPath(path), nullable(value), nil)
}

// Update implements remote.Writer.
func (c *Client) Update(ctx context.Context, path string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPatch, dbPath(path), fields, nil)
}

// Remove implements remote.Writer.
func (c *Client) Remove(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, dbPath(path), nil, nil)
}

// jsonNull makes a nil Set travel as an explicit null body.
type jsonNull struct{}

func (jsonNull) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func nullable(v any) any {
	if v == nil {
		return jsonNull{}
	}
	return v
}
