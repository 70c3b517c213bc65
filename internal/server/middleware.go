package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/inesosoares6/shopping-list-v2/internal/auth"
	"github.com/inesosoares6/shopping-list-v2/internal/errors"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const contextKeyUID contextKey = "uid"

// requireAuth validates the bearer token and attaches the account to the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, err, s.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyUID, claims.UID)))
	})
}

// authenticate verifies an Authorization header value. Tokens of deleted
// accounts are refused.
func (s *Server) authenticate(ctx context.Context, header string) (*auth.Claims, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return nil, errors.Unauthorized("missing or malformed authorization header")
	}

	claims, err := s.accounts.Tokens().Verify(token)
	if err != nil {
		return nil, err
	}
	exists, err := s.accounts.Exists(ctx, claims.UID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Unauthorized("account no longer exists")
	}
	return claims, nil
}

// getUID extracts the authenticated account id from the request context.
func getUID(ctx context.Context) string {
	uid, _ := ctx.Value(contextKeyUID).(string)
	return uid
}

// clientAddr strips the port from RemoteAddr.
func clientAddr(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndexByte(addr, ':'); i > 0 && !strings.HasSuffix(addr, "]") {
		addr = addr[:i]
	}
	return strings.Trim(addr, "[]")
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
