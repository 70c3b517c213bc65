// Package server exposes the realtime tree over HTTP: REST reads and writes
// under /v1/db, child-event streaming over a websocket at /v1/stream and the
// account endpoints under /v1/auth.
package server

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/inesosoares6/shopping-list-v2/internal/auth"
	"github.com/inesosoares6/shopping-list-v2/internal/ratelimit"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
	"github.com/inesosoares6/shopping-list-v2/internal/stream"
)

// Deps are the collaborators of a Server.
type Deps struct {
	Store       remote.Store
	Accounts    *auth.Accounts
	Streams     *stream.Manager
	AuthLimiter *ratelimit.KeyedRateLimiter
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    remote.Store
	accounts *auth.Accounts
	streams  *stream.Manager
	limiter  *ratelimit.KeyedRateLimiter
	origins  []string
	upgrader websocket.Upgrader
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// New creates a server with all routes configured.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}

	s := &Server{
		store:    d.Store,
		accounts: d.Accounts,
		streams:  d.Streams,
		limiter:  d.AuthLimiter,
		origins:  d.CORSOrigins,
		router:   chi.NewRouter(),
		logger:   d.Logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	s.setupMiddleware()
	s.api = newAPI(s.router)
	s.setupRoutes()
	s.registerAuthRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", deviceHeader},
		MaxAge:         300,
	}))
}

// setupRoutes mounts the wildcard tree routes and the stream, which do not
// fit typed operations. The account operations are registered on s.api.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/v1/db/*", s.handleRead)
		r.Put("/v1/db/*", s.handleSet)
		r.Patch("/v1/db/*", s.handleUpdate)
		r.Delete("/v1/db/*", s.handleRemove)
		r.Get("/v1/stream", s.handleStream)
	})
}

// deviceHeader carries the client's device id; it only shows up in logs.
const deviceHeader = "X-Device-ID"

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.origins, "*") {
		return true
	}
	return slices.Contains(s.origins, origin)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	success(w, map[string]any{
		"status":  "ok",
		"streams": s.streams.ClientCount(),
	}, s.logger)
}
