package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Show what is left to buy",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		if s.Settings.ActiveList() == "" {
			return fmt.Errorf("no list selected")
		}
		pending, done := s.List.Pending(), s.List.Completed()
		if len(pending)+len(done) == 0 {
			fmt.Println("The cart is empty")
			return nil
		}
		fmt.Println(color.New(color.Bold).Sprintf("To buy (%d)", len(pending)))
		printEntries(pending, true)
		if len(done) > 0 {
			fmt.Println(color.New(color.Faint).Sprintf("In the cart (%d)", len(done)))
			printEntries(done, true)
		}
		return nil
	},
}

var cartCheckCmd = &cobra.Command{
	Use:   "check <product>...",
	Short: "Check products off",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return markCompleted(cmd, args, true)
	},
}

var cartUncheckCmd = &cobra.Command{
	Use:   "uncheck <product>...",
	Short: "Put checked products back on the to-buy list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return markCompleted(cmd, args, false)
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:     "rm <product>",
	Aliases: []string{"remove"},
	Short:   "Take a product out of the cart, keeping it in the catalog",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		e, err := findEntry(s.List.Entries(), args[0])
		if err != nil {
			return err
		}
		return s.List.RemoveProduct(cmd.Context(), e.Key, false)
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every checked product from the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		if len(s.List.Completed()) == 0 {
			fmt.Println("Nothing checked off")
			return nil
		}
		return s.List.ClearCart(cmd.Context())
	},
}

func init() {
	cartCmd.AddCommand(cartCheckCmd, cartUncheckCmd, cartRemoveCmd, cartClearCmd)
	rootCmd.AddCommand(cartCmd)
}

func markCompleted(cmd *cobra.Command, refs []string, completed bool) error {
	s, err := signedIn(cmd.Context())
	if err != nil {
		return err
	}
	entries := s.List.Entries()
	for _, ref := range refs {
		e, err := findEntry(entries, ref)
		if err != nil {
			return err
		}
		if e.Product.Completed == completed {
			continue
		}
		if err := s.List.PatchProduct(cmd.Context(), e.Key, domain.ProductUpdate{Completed: domain.Ptr(completed)}); err != nil {
			return err
		}
	}
	return nil
}
