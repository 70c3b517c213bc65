// Package di wires the store server and the CLI client with samber/do.
package di

import (
	"github.com/samber/do/v2"

	"github.com/inesosoares6/shopping-list-v2/internal/auth"
	"github.com/inesosoares6/shopping-list-v2/internal/config"
	"github.com/inesosoares6/shopping-list-v2/internal/di/providers"
	"github.com/inesosoares6/shopping-list-v2/internal/logger"
)

// NewServerContainer creates the DI container of the store server.
func NewServerContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideEngine)

	// Auth layer
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideAccounts)
	do.Provide(injector, providers.ProvideAuthLimiter)

	// Server
	do.Provide(injector, providers.ProvideStreamManager)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// BootstrapServer initializes every server service. The HTTP server is
// listening once it returns.
func BootstrapServer(injector *do.RootScope) error {
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.EngineHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*auth.Accounts](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StreamManagerHandle](injector); err != nil {
		return err
	}
	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}

// NewClientContainer creates the DI container of the CLI client.
func NewClientContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSink)
	do.Provide(injector, providers.ProvideClient)
	do.Provide(injector, providers.ProvideSession)

	return injector
}
