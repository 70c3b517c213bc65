// Package main runs the shopping list store server.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/inesosoares6/shopping-list-v2/internal/config"
	"github.com/inesosoares6/shopping-list-v2/internal/di"
	"github.com/inesosoares6/shopping-list-v2/internal/logger"
)

func main() {
	fs := flag.NewFlagSet("syncd", flag.ExitOnError)
	overrides := config.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	injector := di.NewServerContainer(cfg)

	if err := di.BootstrapServer(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		_ = injector.Shutdown()
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// The container closes the HTTP server, the streams and the tree in
	// reverse dependency order.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Server stopped")
}
