// Package wsclient talks to the store server: tree reads and writes over
// REST, child events over a single websocket, and the account endpoints. A
// Client is both the remote.Store and the shopping.Authenticator of a CLI
// session.
package wsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/notify"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/shopping"
)

const deviceHeader = "X-Device-ID"

// Options configure a Client.
type Options struct {
	ServerURL  string
	TokenFile  string // empty keeps credentials in memory only
	Timeout    time.Duration
	HTTPClient *http.Client
	Sink       notify.Sink // connection loss is reported here
	Logger     *slog.Logger
}

// credentials is the token file content.
type credentials struct {
	UID       string    `json:"uid,omitempty"`
	Email     string    `json:"email,omitempty"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

func (c credentials) valid() bool {
	return c.Token != "" && c.UID != "" && time.Now().Before(c.ExpiresAt)
}

// Client is the network store and identity provider.
type Client struct {
	base      *url.URL
	http      *http.Client
	timeout   time.Duration
	tokenFile string
	sink      notify.Sink
	logger    *slog.Logger

	mu    sync.Mutex
	creds credentials

	connMu sync.Mutex
	conn   *conn
}

var (
	_ remote.Store           = (*Client)(nil)
	_ shopping.Authenticator = (*Client)(nil)
)

// New creates a client and restores credentials from the token file.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.ServerURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", opts.ServerURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Sink == nil {
		opts.Sink = notify.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		base:      base,
		http:      opts.HTTPClient,
		timeout:   opts.Timeout,
		tokenFile: opts.TokenFile,
		sink:      opts.Sink,
		logger:    opts.Logger,
	}
	if err := c.loadCredentials(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close drops the stream connection. Subscriptions stop receiving events.
func (c *Client) Close() error {
	c.connMu.Lock()
	cn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if cn != nil {
		cn.close()
	}
	return nil
}

// DeviceID identifies this installation to the server.
func (c *Client) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.DeviceID
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.Token
}

func (c *Client) loadCredentials() error {
	if c.tokenFile != "" {
		//#nosec G304 -- path comes from configuration
		raw, err := os.ReadFile(c.tokenFile)
		switch {
		case err == nil:
			if err := json.Unmarshal(raw, &c.creds); err != nil {
				c.logger.Warn("ignoring unreadable token file", "path", c.tokenFile, "error", err)
				c.creds = credentials{}
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("read token file: %w", err)
		}
	}
	if c.creds.DeviceID == "" {
		c.creds.DeviceID = uuid.NewString()
	}
	return nil
}

// saveCredentials writes the token file. Caller holds c.mu.
func (c *Client) saveCredentials() error {
	if c.tokenFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(c.creds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenFile), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(c.tokenFile, data, 0o600); err != nil {
		return fmt.Errorf("save token file: %w", err)
	}
	return nil
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   *errors.Error   `json:"error"`
	Success bool            `json:"success"`
}

// do sends one request and decodes the envelope's data into out when given.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return errors.Wrap(err, errors.CodeValidation, "value is not JSON encodable")
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(deviceHeader, c.DeviceID())
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Unavailable("store server unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return errors.NewCode(errors.CodeFromStatus(resp.StatusCode), resp.Status)
		}
		return errors.Wrap(err, errors.CodeInternal, "decode response")
	}
	if resp.StatusCode >= 400 {
		if env.Error != nil {
			return errors.NewCode(env.Error.Code, env.Error.Message)
		}
		return errors.NewCode(errors.CodeFromStatus(resp.StatusCode), resp.Status)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "decode response")
		}
	}
	return nil
}
