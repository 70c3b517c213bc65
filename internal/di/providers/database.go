package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/inesosoares6/shopping-list-v2/internal/config"
	"github.com/inesosoares6/shopping-list-v2/internal/logger"
	"github.com/inesosoares6/shopping-list-v2/internal/rtdb"
)

// EngineHandle wraps the tree engine with shutdown capability.
type EngineHandle struct {
	*rtdb.Engine
}

// Shutdown implements do.Shutdownable.
func (h *EngineHandle) Shutdown() error {
	return h.Close()
}

// ProvideEngine opens the configured backend and loads the tree.
func ProvideEngine(i do.Injector) (*EngineHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.StorePath()
	engine, err := rtdb.Open(context.Background(), cfg.Store.Backend, path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Tree store opened", "backend", cfg.Store.Backend, "path", path)

	return &EngineHandle{Engine: engine}, nil
}
