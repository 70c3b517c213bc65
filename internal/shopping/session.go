package shopping

import (
	"context"
	"log/slog"
	"time"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/notify"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
)

// Notifications shown after account changes.
const (
	MsgPasswordUpdated = "Password updated!"
	MsgEmailUpdated    = "Email updated!"
	MsgAccountDeleted  = "Account deleted!"
)

// Identity is a signed-in account.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Authenticator is the identity provider.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (Identity, error)
	Login(ctx context.Context, email, password string) (Identity, error)
	Logout(ctx context.Context) error
	UpdatePassword(ctx context.Context, password string) error
	UpdateEmail(ctx context.Context, email string) error
	DeleteAccount(ctx context.Context) error
	// Current returns the identity restored from a previous login, if any.
	Current() (Identity, bool)
}

// Session holds the three controllers of one signed-in user. Build one per
// process and hand it to whatever drives the UI.
type Session struct {
	Settings *Settings
	Catalog  *Catalog
	List     *List
	Transfer *Transfer

	store  remote.Store
	auth   Authenticator
	sink   notify.Sink
	logger *slog.Logger
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	now func() time.Time
}

// WithClock sets the clock used for "added by" stamps.
func WithClock(now func() time.Time) Option {
	return func(o *sessionOptions) { o.now = now }
}

// NewSession builds and wires the controllers.
func NewSession(store remote.Store, auth Authenticator, sink notify.Sink, logger *slog.Logger, opts ...Option) *Session {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}
	if sink == nil {
		sink = notify.Discard{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	catalog := NewCatalog(store, sink, logger)
	list := NewList(store, sink, logger)
	settings := NewSettings(store, sink, logger, catalog, list)
	settings.SetProductSource(catalog)
	catalog.guard = settings
	list.guard = settings

	return &Session{
		Settings: settings,
		Catalog:  catalog,
		List:     list,
		Transfer: NewTransfer(catalog, list, settings, o.now),
		store:    store,
		auth:     auth,
		sink:     sink,
		logger:   logger,
	}
}

// Start loads the data of uid. Called on every sign-in.
func (s *Session) Start(ctx context.Context, uid string) error {
	s.logger.Info("session started", "uid", uid)
	return s.Settings.ReadData(ctx, uid)
}

// Stop clears both mirrors and the settings. Called on sign-out.
func (s *Session) Stop() {
	s.Settings.Clear()
	s.logger.Info("session stopped")
}

// Resume starts the session of a previously signed-in account. It reports
// whether there was one.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	if s.auth == nil {
		return false, nil
	}
	ident, ok := s.auth.Current()
	if !ok {
		return false, nil
	}
	return true, s.Start(ctx, ident.UID)
}

// Register creates an account and signs it in.
func (s *Session) Register(ctx context.Context, email, password string) (Identity, error) {
	auth, err := s.authenticator()
	if err != nil {
		return Identity{}, err
	}
	ident, err := auth.Register(ctx, email, password)
	if err != nil {
		return Identity{}, s.fail(err)
	}
	return ident, s.Start(ctx, ident.UID)
}

// Login signs an existing account in.
func (s *Session) Login(ctx context.Context, email, password string) (Identity, error) {
	auth, err := s.authenticator()
	if err != nil {
		return Identity{}, err
	}
	ident, err := auth.Login(ctx, email, password)
	if err != nil {
		return Identity{}, s.fail(err)
	}
	return ident, s.Start(ctx, ident.UID)
}

// Logout signs out and clears local state.
func (s *Session) Logout(ctx context.Context) error {
	auth, err := s.authenticator()
	if err != nil {
		return err
	}
	s.Stop()
	if err := auth.Logout(ctx); err != nil {
		return s.fail(err)
	}
	return nil
}

// UpdatePassword changes the account password.
func (s *Session) UpdatePassword(ctx context.Context, password string) error {
	auth, err := s.authenticator()
	if err != nil {
		return err
	}
	if err := auth.UpdatePassword(ctx, password); err != nil {
		return s.fail(err)
	}
	s.sink.Notify(MsgPasswordUpdated)
	return nil
}

// UpdateEmail changes the account email.
func (s *Session) UpdateEmail(ctx context.Context, email string) error {
	auth, err := s.authenticator()
	if err != nil {
		return err
	}
	if err := auth.UpdateEmail(ctx, email); err != nil {
		return s.fail(err)
	}
	s.sink.Notify(MsgEmailUpdated)
	return nil
}

// DeleteAccount removes the user's settings subtree, then the account.
func (s *Session) DeleteAccount(ctx context.Context) error {
	auth, err := s.authenticator()
	if err != nil {
		return err
	}
	uid := s.Settings.UID()
	if uid == "" {
		return s.fail(errors.Unauthorized("not signed in"))
	}
	if err := s.store.Remove(ctx, remote.User(uid)); err != nil {
		return s.fail(err)
	}
	if err := auth.DeleteAccount(ctx); err != nil {
		return s.fail(err)
	}
	s.Stop()
	s.sink.Notify(MsgAccountDeleted)
	return nil
}

func (s *Session) authenticator() (Authenticator, error) {
	if s.auth == nil {
		return nil, s.fail(errors.Internal("no identity provider configured"))
	}
	return s.auth, nil
}

func (s *Session) fail(err error) error {
	s.logger.Warn("session operation failed", "error", err)
	s.sink.Error(err.Error())
	return err
}
