// Package main is the shopping list command-line client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := Execute(ctx)
	stop()
	if err != nil {
		// Domain errors were already shown by the notification sink.
		var de *errors.Error
		if !errors.As(err, &de) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
