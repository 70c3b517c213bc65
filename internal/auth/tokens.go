package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/id"
)

const (
	tokenIssuer   = "shoplist-syncd"
	tokenAudience = "shoplist-client"
)

// Claims is the payload of an access token.
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`

	Issuer     string    `json:"iss"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// TokenService issues and verifies PASETO v4.local access tokens.
type TokenService struct {
	key      paseto.V4SymmetricKey
	duration time.Duration
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, duration time.Duration) (*TokenService, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", keyLength, len(key))
	}
	sym, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("create PASETO key: %w", err)
	}
	return &TokenService{key: sym, duration: duration}, nil
}

// Issue creates an access token for the account.
func (s *TokenService) Issue(uid, email string) (string, error) {
	now := time.Now()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(uid)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.duration))

	jti, err := id.Generate(id.PrefixToken)
	if err != nil {
		return "", err
	}
	token.SetJti(jti)

	//nolint:errcheck // Set only fails on values that cannot be encoded
	_ = token.Set("uid", uid)
	//nolint:errcheck // Set only fails on values that cannot be encoded
	_ = token.Set("email", email)

	return token.V4Encrypt(s.key, nil), nil
}

// Verify decrypts a token and checks issuer, audience and validity window.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(time.Now()))

	token, err := parser.ParseV4Local(s.key, raw, nil)
	if err != nil {
		return nil, errors.Unauthorized("invalid or expired token").WithCause(err)
	}

	var claims Claims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, errors.Unauthorized("invalid token claims").WithCause(err)
	}
	if claims.UID == "" {
		return nil, errors.Unauthorized("token carries no account")
	}
	return &claims, nil
}

// Duration returns the access token lifetime.
func (s *TokenService) Duration() time.Duration {
	return s.duration
}
