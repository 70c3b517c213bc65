package wsclient

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/shopping"
)

type grant struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register implements shopping.Authenticator.
func (c *Client) Register(ctx context.Context, email, password string) (shopping.Identity, error) {
	var g grant
	if err := c.do(ctx, http.MethodPost, "/v1/auth/register", credentialsRequest{email, password}, &g); err != nil {
		return shopping.Identity{}, err
	}
	return c.signIn(g)
}

// Login implements shopping.Authenticator.
func (c *Client) Login(ctx context.Context, email, password string) (shopping.Identity, error) {
	var g grant
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", credentialsRequest{email, password}, &g); err != nil {
		return shopping.Identity{}, err
	}
	return c.signIn(g)
}

// Logout implements shopping.Authenticator: the stream is closed and the
// token forgotten.
func (c *Client) Logout(context.Context) error {
	_ = c.Close()
	return c.forget()
}

// UpdatePassword implements shopping.Authenticator.
func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	return c.do(ctx, http.MethodPut, "/v1/auth/password", map[string]string{"password": password}, nil)
}

// UpdateEmail implements shopping.Authenticator. The server hands back a
// token carrying the new address.
func (c *Client) UpdateEmail(ctx context.Context, email string) error {
	var g grant
	if err := c.do(ctx, http.MethodPut, "/v1/auth/email", map[string]string{"email": email}, &g); err != nil {
		return err
	}
	_, err := c.signIn(g)
	return err
}

// DeleteAccount implements shopping.Authenticator.
func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/auth/account", nil, nil); err != nil {
		return err
	}
	_ = c.Close()
	return c.forget()
}

// Current implements shopping.Authenticator.
func (c *Client) Current() (shopping.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.creds.valid() {
		return shopping.Identity{}, false
	}
	return shopping.Identity{UID: c.creds.UID, Email: c.creds.Email}, true
}

func (c *Client) signIn(g grant) (shopping.Identity, error) {
	if g.Token == "" || g.UID == "" {
		return shopping.Identity{}, errors.Internal("server returned no token")
	}

	c.mu.Lock()
	prev := c.creds.UID
	c.creds.UID, c.creds.Email = g.UID, g.Email
	c.creds.Token, c.creds.ExpiresAt = g.Token, g.ExpiresAt
	err := c.saveCredentials()
	c.mu.Unlock()

	// a stream authenticated as someone else must not be reused
	if prev != "" && prev != g.UID {
		_ = c.Close()
	}
	if err != nil {
		return shopping.Identity{}, errors.Wrap(err, errors.CodeInternal, "could not store credentials")
	}
	return shopping.Identity{UID: g.UID, Email: g.Email}, nil
}

func (c *Client) forget() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = credentials{DeviceID: c.creds.DeviceID}
	if c.tokenFile == "" {
		return nil
	}
	if err := c.saveCredentials(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.CodeInternal, "could not clear credentials")
	}
	return nil
}
