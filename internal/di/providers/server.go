package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/inesosoares6/shopping-list-v2/internal/auth"
	"github.com/inesosoares6/shopping-list-v2/internal/config"
	"github.com/inesosoares6/shopping-list-v2/internal/logger"
	"github.com/inesosoares6/shopping-list-v2/internal/ratelimit"
	"github.com/inesosoares6/shopping-list-v2/internal/server"
	"github.com/inesosoares6/shopping-list-v2/internal/stream"
)

const (
	// shutdownTimeout bounds the graceful stop of streams and the HTTP server.
	shutdownTimeout = 30 * time.Second
	// limiterIdle is how long an unused per-address bucket is kept.
	limiterIdle = 10 * time.Minute
)

// StreamManagerHandle wraps the stream manager with its context for lifecycle management.
type StreamManagerHandle struct {
	*stream.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *StreamManagerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Manager.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideStreamManager provides the websocket stream manager.
func ProvideStreamManager(i do.Injector) (*StreamManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	manager := stream.NewManager(log.Logger, stream.Options{
		Heartbeat:   cfg.Server.Heartbeat,
		QueueSize:   cfg.Server.StreamQueue,
		SendTimeout: cfg.Server.StreamSend,
	})

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	return &StreamManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// AuthLimiterHandle wraps the per-address limiter of the auth endpoints.
type AuthLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *AuthLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideAuthLimiter provides the register and login rate limiter.
func ProvideAuthLimiter(i do.Injector) (*AuthLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	limiter := ratelimit.New(cfg.Server.AuthRate, cfg.Server.AuthBurst, limiterIdle)
	return &AuthLimiterHandle{KeyedRateLimiter: limiter}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	// Bound is the address actually listened on, useful when the port is 0.
	Bound   net.Addr
	timeout time.Duration
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer binds the listener and serves the API in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	engine := do.MustInvoke[*EngineHandle](i)
	accounts := do.MustInvoke[*auth.Accounts](i)
	streams := do.MustInvoke[*StreamManagerHandle](i)
	limiter := do.MustInvoke[*AuthLimiterHandle](i)

	handler := server.New(server.Deps{
		Store:       engine.Engine,
		Accounts:    accounts,
		Streams:     streams.Manager,
		AuthLimiter: limiter.KeyedRateLimiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log.Logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}

	// Start in background
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", ln.Addr().String())

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = shutdownTimeout
	}
	return &HTTPServerHandle{Server: srv, Bound: ln.Addr(), timeout: timeout}, nil
}
