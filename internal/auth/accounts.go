package auth

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/id"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/validation"
)

// PrivateRoot holds server-only records. Clients can never read or write
// paths under it.
const PrivateRoot = "_auth"

// Credentials is the register/login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=1024"`
}

// Grant is what a successful sign-in hands back to the client.
type Grant struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type account struct {
	Email     string    `json:"email"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Accounts manages email/password accounts stored in the tree.
type Accounts struct {
	store     remote.Store
	tokens    *TokenService
	validator *validation.Validator
	logger    *slog.Logger

	// serializes email ownership changes
	mu sync.Mutex
}

// NewAccounts creates the account service.
func NewAccounts(store remote.Store, tokens *TokenService, logger *slog.Logger) *Accounts {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Accounts{
		store:     store,
		tokens:    tokens,
		validator: validation.New(),
		logger:    logger,
	}
}

// Tokens returns the token service used to sign grants.
func (a *Accounts) Tokens() *TokenService {
	return a.tokens
}

func accountPath(uid string) string { return remote.Join(PrivateRoot, "users", uid) }

func emailPath(email string) string {
	return remote.Join(PrivateRoot, "emails", base64.RawURLEncoding.EncodeToString([]byte(email)))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs it in.
func (a *Accounts) Register(ctx context.Context, creds Credentials) (*Grant, error) {
	creds.Email = normalizeEmail(creds.Email)
	if err := a.validator.Validate(creds); err != nil {
		return nil, err
	}

	hash, err := HashPassword(creds.Password)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.lookup(ctx, creds.Email); err == nil {
		return nil, errors.AlreadyExists("email already in use")
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	uid, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "create account")
	}

	rec := account{Email: creds.Email, Hash: hash, CreatedAt: time.Now().UTC()}
	if err := a.store.Update(ctx, "", map[string]any{
		accountPath(uid):       rec,
		emailPath(creds.Email): uid,
	}); err != nil {
		return nil, err
	}

	a.logger.Info("account registered", "uid", uid)
	return a.grant(uid, creds.Email)
}

// Login checks credentials and issues a token.
func (a *Accounts) Login(ctx context.Context, creds Credentials) (*Grant, error) {
	email := normalizeEmail(creds.Email)

	uid, err := a.lookup(ctx, email)
	if errors.Is(err, errors.ErrNotFound) {
		// burn comparable time for unknown emails
		_, _ = HashPassword(creds.Password)
		return nil, errors.InvalidCredentials("invalid email or password")
	}
	if err != nil {
		return nil, err
	}

	rec, err := a.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !VerifyPassword(rec.Hash, creds.Password) {
		return nil, errors.InvalidCredentials("invalid email or password")
	}
	return a.grant(uid, rec.Email)
}

// UpdatePassword replaces the password hash of uid.
func (a *Accounts) UpdatePassword(ctx context.Context, uid, password string) error {
	if err := a.validator.Var("password", password, "required,min=6,max=1024"); err != nil {
		return err
	}
	if _, err := a.load(ctx, uid); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return errors.Validation(err.Error())
	}
	return a.store.Update(ctx, accountPath(uid), map[string]any{"hash": hash})
}

// UpdateEmail moves the account to a new email and returns a fresh grant
// carrying it.
func (a *Accounts) UpdateEmail(ctx context.Context, uid, email string) (*Grant, error) {
	email = normalizeEmail(email)
	if err := a.validator.Var("email", email, "required,email,max=254"); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rec, err := a.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	if rec.Email == email {
		return a.grant(uid, email)
	}
	if _, err := a.lookup(ctx, email); err == nil {
		return nil, errors.AlreadyExists("email already in use")
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	if err := a.store.Update(ctx, "", map[string]any{
		emailPath(rec.Email):                   nil,
		emailPath(email):                       uid,
		remote.Join(accountPath(uid), "email"): email,
	}); err != nil {
		return nil, err
	}
	return a.grant(uid, email)
}

// Delete removes the user's data node, then the credential records.
func (a *Accounts) Delete(ctx context.Context, uid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, err := a.load(ctx, uid)
	if err != nil {
		return err
	}
	if err := a.store.Remove(ctx, remote.User(uid)); err != nil {
		return err
	}
	if err := a.store.Update(ctx, "", map[string]any{
		emailPath(rec.Email): nil,
		accountPath(uid):     nil,
	}); err != nil {
		return err
	}
	a.logger.Info("account deleted", "uid", uid)
	return nil
}

// Exists reports whether uid still has an account. Tokens outlive deleted
// accounts, so the server checks this on every authenticated request.
func (a *Accounts) Exists(ctx context.Context, uid string) (bool, error) {
	_, err := a.load(ctx, uid)
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (a *Accounts) lookup(ctx context.Context, email string) (string, error) {
	snap, err := a.store.ReadOnce(ctx, emailPath(email))
	if err != nil {
		return "", err
	}
	uid, ok := snap.Value.(string)
	if !ok || uid == "" {
		return "", errors.ErrNotFound
	}
	return uid, nil
}

func (a *Accounts) load(ctx context.Context, uid string) (*account, error) {
	snap, err := a.store.ReadOnce(ctx, accountPath(uid))
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		return nil, errors.NotFound("account not found")
	}
	var rec account
	if err := snap.Decode(&rec); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "decode account")
	}
	return &rec, nil
}

func (a *Accounts) grant(uid, email string) (*Grant, error) {
	token, err := a.tokens.Issue(uid, email)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "issue token")
	}
	return &Grant{
		UID:       uid,
		Email:     email,
		Token:     token,
		ExpiresAt: time.Now().Add(a.tokens.Duration()).UTC(),
	}, nil
}
