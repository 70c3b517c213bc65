package auth

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/rtdb"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestHashPassword_Verify(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$"))

	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "battery staple"))
}

func TestHashPassword_Rejects(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)

	_, err = HashPassword(strings.Repeat("x", maxPasswordLength+1))
	assert.ErrorIs(t, err, errPasswordLength)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, h := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$AA$AA", "$argon2id$v=1$m=1,t=1,p=1$AA$AA"} {
		assert.False(t, VerifyPassword(h, "secret"), h)
	}
}

func TestTokenService_IssueVerify(t *testing.T) {
	svc, err := NewTokenService(testKey(), time.Hour)
	require.NoError(t, err)

	token, err := svc.Issue("usr-1", "ana@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.True(t, strings.HasPrefix(claims.TokenID, "tok-"))
}

func TestTokenService_Rejects(t *testing.T) {
	svc, err := NewTokenService(testKey(), time.Hour)
	require.NoError(t, err)

	other, err := NewTokenService([]byte("fedcba9876543210fedcba9876543210"), time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue("usr-1", "ana@example.com")
	require.NoError(t, err)

	expiredSvc, err := NewTokenService(testKey(), -time.Minute)
	require.NoError(t, err)
	expired, err := expiredSvc.Issue("usr-1", "ana@example.com")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage": "not-a-token",
		"foreign": foreign,
		"expired": expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(token)
			assert.ErrorIs(t, err, errors.ErrUnauthorized)
		})
	}
}

func TestNewTokenService_KeyLength(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, first, keyLength)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrGenerateKey_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte("zz"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	assert.Error(t, err)
}

func newAccounts(t *testing.T) (*Accounts, *rtdb.Engine) {
	t.Helper()
	engine := rtdb.NewMemory(nil)
	t.Cleanup(func() { _ = engine.Close() })

	tokens, err := NewTokenService(testKey(), time.Hour)
	require.NoError(t, err)
	return NewAccounts(engine, tokens, nil), engine
}

func TestAccounts_RegisterAndLogin(t *testing.T) {
	accounts, engine := newAccounts(t)
	ctx := context.Background()

	grant, err := accounts.Register(ctx, Credentials{Email: " Ana@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(grant.UID, "usr-"))
	assert.Equal(t, "ana@example.com", grant.Email)
	assert.NotEmpty(t, grant.Token)

	snap, err := engine.ReadOnce(ctx, remote.Join(PrivateRoot, "users", grant.UID, "email"))
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", snap.Value)

	login, err := accounts.Login(ctx, Credentials{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, grant.UID, login.UID)

	claims, err := accounts.Tokens().Verify(login.Token)
	require.NoError(t, err)
	assert.Equal(t, grant.UID, claims.UID)
}

func TestAccounts_RegisterFailures(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()

	_, err := accounts.Register(ctx, Credentials{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = accounts.Register(ctx, Credentials{Email: "ANA@example.com", Password: "another1"})
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	_, err = accounts.Register(ctx, Credentials{Email: "not-an-email", Password: "secret1"})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = accounts.Register(ctx, Credentials{Email: "bo@example.com", Password: "123"})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestAccounts_LoginFailures(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()

	_, err := accounts.Register(ctx, Credentials{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = accounts.Login(ctx, Credentials{Email: "ana@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)

	_, err = accounts.Login(ctx, Credentials{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestAccounts_UpdatePasswordAndEmail(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()

	grant, err := accounts.Register(ctx, Credentials{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, accounts.UpdatePassword(ctx, grant.UID, "secret2"))
	_, err = accounts.Login(ctx, Credentials{Email: "ana@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)

	moved, err := accounts.UpdateEmail(ctx, grant.UID, "ana@shop.example")
	require.NoError(t, err)
	assert.Equal(t, "ana@shop.example", moved.Email)

	_, err = accounts.Login(ctx, Credentials{Email: "ana@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	login, err := accounts.Login(ctx, Credentials{Email: "ana@shop.example", Password: "secret2"})
	require.NoError(t, err)
	assert.Equal(t, grant.UID, login.UID)

	other, err := accounts.Register(ctx, Credentials{Email: "bo@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = accounts.UpdateEmail(ctx, other.UID, "ana@shop.example")
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestAccounts_Delete(t *testing.T) {
	accounts, engine := newAccounts(t)
	ctx := context.Background()

	grant, err := accounts.Register(ctx, Credentials{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, engine.Set(ctx, remote.User(grant.UID), map[string]any{"username": "Ana"}))

	require.NoError(t, accounts.Delete(ctx, grant.UID))

	snap, err := engine.ReadOnce(ctx, remote.User(grant.UID))
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	ok, err := accounts.Exists(ctx, grant.UID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = accounts.Login(ctx, Credentials{Email: "ana@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)

	// the email is free again
	_, err = accounts.Register(ctx, Credentials{Email: "ana@example.com", Password: "secret1"})
	assert.NoError(t, err)
}
