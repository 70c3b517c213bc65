package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/inesosoares6/shopping-list-v2/internal/config"
	"github.com/inesosoares6/shopping-list-v2/internal/logger"
	"github.com/inesosoares6/shopping-list-v2/internal/notify"
	"github.com/inesosoares6/shopping-list-v2/internal/shopping"
	"github.com/inesosoares6/shopping-list-v2/internal/wsclient"
)

// ProvideSink provides the terminal notification sink.
func ProvideSink(i do.Injector) (notify.Sink, error) {
	return notify.NewTerminalSink(os.Stdout, os.Stderr), nil
}

// ClientHandle wraps the network client with shutdown capability.
type ClientHandle struct {
	*wsclient.Client
}

// Shutdown implements do.Shutdownable.
func (h *ClientHandle) Shutdown() error {
	return h.Close()
}

// ProvideClient provides the store client, restoring any saved login.
func ProvideClient(i do.Injector) (*ClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sink := do.MustInvoke[notify.Sink](i)

	client, err := wsclient.New(wsclient.Options{
		ServerURL: cfg.Client.ServerURL,
		TokenFile: cfg.Client.TokenFile,
		Timeout:   cfg.Client.RequestTimeout,
		Sink:      sink,
		Logger:    log.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &ClientHandle{Client: client}, nil
}

// SessionHandle wraps the shopping session with shutdown capability.
type SessionHandle struct {
	*shopping.Session
}

// Shutdown implements do.Shutdownable.
func (h *SessionHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideSession provides the controllers of the signed-in user.
func ProvideSession(i do.Injector) (*SessionHandle, error) {
	client := do.MustInvoke[*ClientHandle](i)
	sink := do.MustInvoke[notify.Sink](i)
	log := do.MustInvoke[*logger.Logger](i)

	session := shopping.NewSession(client.Client, client.Client, sink, log.Logger)
	return &SessionHandle{Session: session}, nil
}
