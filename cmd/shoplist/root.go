package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/inesosoares6/shopping-list-v2/internal/config"
	"github.com/inesosoares6/shopping-list-v2/internal/di"
	"github.com/inesosoares6/shopping-list-v2/internal/di/providers"
)

var (
	overrides config.Overrides
	cfg       *config.Config
	injector  *do.RootScope
)

var rootCmd = &cobra.Command{
	Use:   "shoplist",
	Short: "Shared shopping lists from the terminal",
	Long: `shoplist keeps a catalog of products per list and a cart of what to buy.
Lists are shared: anyone who knows a list id can join it, and every change
shows up for all members in real time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(overrides)
		if err != nil {
			return err
		}
		injector = di.NewClientContainer(cfg)
		return nil
	},
}

// Execute runs the command line and shuts the client down.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if injector != nil {
		_ = injector.Shutdown()
	}
	return err
}

func init() {
	fs := flag.NewFlagSet("shoplist", flag.ContinueOnError)
	overrides = config.BindFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)
}

// session returns the controllers without signing anyone in.
func session() (*providers.SessionHandle, error) {
	if injector == nil {
		return nil, fmt.Errorf("client not initialized")
	}
	return do.Invoke[*providers.SessionHandle](injector)
}

// signedIn resumes the saved login and waits until the active list is mirrored.
func signedIn(ctx context.Context) (*providers.SessionHandle, error) {
	s, err := session()
	if err != nil {
		return nil, err
	}
	ok, err := s.Resume(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("not signed in, run 'shoplist login' first")
	}
	settle(ctx, s.Session)
	return s, nil
}
