package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"

	"github.com/inesosoares6/shopping-list-v2/internal/auth"
	"github.com/inesosoares6/shopping-list-v2/internal/errors"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/v1/auth/register",
		Summary:       "Register",
		Description:   "Creates an account and signs it in.",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{s.limitAuth},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/v1/auth/login",
		Summary:     "Login",
		Description: "Exchanges email and password for a bearer token.",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.limitAuth},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/v1/auth/me",
		Summary:     "Current account",
		Tags:        []string{"Authentication"},
		Security:    bearer,
	}, s.handleMe)

	huma.Register(s.api, huma.Operation{
		OperationID:   "update-password",
		Method:        http.MethodPut,
		Path:          "/v1/auth/password",
		Summary:       "Change password",
		Tags:          []string{"Authentication"},
		Security:      bearer,
		DefaultStatus: http.StatusNoContent,
	}, s.handleUpdatePassword)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-email",
		Method:      http.MethodPut,
		Path:        "/v1/auth/email",
		Summary:     "Change email",
		Description: "Moves the account to a new email and returns a fresh token for it.",
		Tags:        []string{"Authentication"},
		Security:    bearer,
	}, s.handleUpdateEmail)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-account",
		Method:        http.MethodDelete,
		Path:          "/v1/auth/account",
		Summary:       "Delete account",
		Description:   "Deletes the account and its user data, and closes its streams.",
		Tags:          []string{"Authentication"},
		Security:      bearer,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteAccount)
}

// === DTOs ===

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email" maxLength:"254" doc:"Account email"`
	Password string `json:"password" maxLength:"1024" doc:"Account password"`
}

// CredentialsInput wraps the credentials for Huma.
type CredentialsInput struct {
	Body CredentialsRequest
}

// AuthorizedInput carries the bearer token of protected operations.
type AuthorizedInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
}

// PasswordRequest is the body of a password change.
type PasswordRequest struct {
	Password string `json:"password" maxLength:"1024" doc:"New password"`
}

// PasswordInput wraps the password change for Huma.
type PasswordInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Body          PasswordRequest
}

// EmailRequest is the body of an email change.
type EmailRequest struct {
	Email string `json:"email" maxLength:"254" doc:"New email"`
}

// EmailInput wraps the email change for Huma.
type EmailInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	Body          EmailRequest
}

// GrantOutput wraps a sign-in grant for Huma.
type GrantOutput struct {
	Body auth.Grant
}

// MeResponse identifies the signed-in account.
type MeResponse struct {
	UID   string `json:"uid" doc:"Account id"`
	Email string `json:"email" doc:"Account email"`
}

// MeOutput wraps the current account for Huma.
type MeOutput struct {
	Body MeResponse
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *CredentialsInput) (*GrantOutput, error) {
	grant, err := s.accounts.Register(ctx, auth.Credentials(input.Body))
	if err != nil {
		return nil, s.opError(err)
	}
	return &GrantOutput{Body: *grant}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *CredentialsInput) (*GrantOutput, error) {
	grant, err := s.accounts.Login(ctx, auth.Credentials(input.Body))
	if err != nil {
		return nil, s.opError(err)
	}
	return &GrantOutput{Body: *grant}, nil
}

func (s *Server) handleMe(ctx context.Context, input *AuthorizedInput) (*MeOutput, error) {
	claims, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return nil, s.opError(err)
	}
	return &MeOutput{Body: MeResponse{UID: claims.UID, Email: claims.Email}}, nil
}

func (s *Server) handleUpdatePassword(ctx context.Context, input *PasswordInput) (*struct{}, error) {
	claims, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return nil, s.opError(err)
	}
	if err := s.accounts.UpdatePassword(ctx, claims.UID, input.Body.Password); err != nil {
		return nil, s.opError(err)
	}
	return nil, nil
}

func (s *Server) handleUpdateEmail(ctx context.Context, input *EmailInput) (*GrantOutput, error) {
	claims, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return nil, s.opError(err)
	}
	grant, err := s.accounts.UpdateEmail(ctx, claims.UID, input.Body.Email)
	if err != nil {
		return nil, s.opError(err)
	}
	return &GrantOutput{Body: *grant}, nil
}

func (s *Server) handleDeleteAccount(ctx context.Context, input *AuthorizedInput) (*struct{}, error) {
	claims, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return nil, s.opError(err)
	}
	if err := s.accounts.Delete(ctx, claims.UID); err != nil {
		return nil, s.opError(err)
	}

	// open streams would keep serving a deleted account
	var stale []string
	for c := range s.streams.Clients() {
		if c.UID == claims.UID {
			stale = append(stale, c.ID)
		}
	}
	for _, clientID := range stale {
		s.streams.Disconnect(clientID)
	}
	return nil, nil
}

// limitAuth limits sign-in attempts per client address.
func (s *Server) limitAuth(ctx huma.Context, next func(huma.Context)) {
	if s.limiter == nil {
		next(ctx)
		return
	}
	r, _ := humachi.Unwrap(ctx)
	key := clientAddr(r)
	if !s.limiter.Allow(key) {
		s.logger.Warn("rate limit exceeded", "addr", key, "path", r.URL.Path)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "too many requests", errors.ErrRateLimited)
		return
	}
	next(ctx)
}

// opError logs internal failures and converts err for huma.
func (s *Server) opError(err error) error {
	var e *errors.Error
	if !errors.As(err, &e) || e.Code == errors.CodeInternal {
		s.logger.Error("operation failed", "error", err)
	}
	return toAPIError(err)
}
