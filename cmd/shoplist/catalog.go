package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
)

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Aliases: []string{"cat", "c"},
	Short:   "Show the products of the active list",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		if s.Settings.ActiveList() == "" {
			return fmt.Errorf("no list selected")
		}

		search, _ := cmd.Flags().GetString("search")
		sortBy, _ := cmd.Flags().GetString("sort")
		all, _ := cmd.Flags().GetBool("all")
		favorites, _ := cmd.Flags().GetBool("favorites")
		selected, _ := cmd.Flags().GetBool("selected")

		if err := s.Catalog.SetSort(sortBy); err != nil {
			return err
		}
		s.Catalog.SetSearch(search)

		var entries []domain.Entry
		switch {
		case favorites:
			entries = s.Catalog.Favorites()
		case selected:
			entries = s.Catalog.Selected()
		case all:
			entries = s.Catalog.Filtered()
		default:
			entries = s.Catalog.Active()
		}

		fmt.Printf("%s (%d)\n", s.Settings.ListName(), len(entries))
		printEntries(entries, false)
		return nil
	},
}

var catalogAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a product to the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		p := domain.Product{Name: args[0]}
		p.Keywords, _ = cmd.Flags().GetString("keywords")
		p.Notes, _ = cmd.Flags().GetString("notes")
		p.Favorite, _ = cmd.Flags().GetBool("favorite")
		p.Selected, _ = cmd.Flags().GetBool("select")

		key, err := s.Catalog.CreateProduct(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

var catalogEditCmd = &cobra.Command{
	Use:   "edit <product>",
	Short: "Change the name, keywords or notes of a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		e, err := findEntry(s.Catalog.Entries(), args[0])
		if err != nil {
			return err
		}
		var u domain.ProductUpdate
		for _, f := range []struct {
			flag string
			dst  **string
		}{
			{"name", &u.Name},
			{"keywords", &u.Keywords},
			{"notes", &u.Notes},
		} {
			if cmd.Flags().Changed(f.flag) {
				v, _ := cmd.Flags().GetString(f.flag)
				*f.dst = &v
			}
		}
		if u.IsEmpty() {
			return fmt.Errorf("nothing to change, pass --name, --keywords or --notes")
		}
		return s.Catalog.PatchProduct(cmd.Context(), e.Key, u)
	},
}

var catalogRemoveCmd = &cobra.Command{
	Use:     "rm <product>",
	Aliases: []string{"remove"},
	Short:   "Delete a product from the catalog and the cart",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		e, err := findEntry(s.Catalog.Entries(), args[0])
		if err != nil {
			return err
		}
		return s.Catalog.RemoveProduct(cmd.Context(), e.Key)
	},
}

var catalogSelectCmd = &cobra.Command{
	Use:   "select <product>...",
	Short: "Toggle products in or out of the selection",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, args, func(p domain.Product) domain.ProductUpdate {
			return domain.ProductUpdate{Selected: domain.Ptr(!p.Selected)}
		})
	},
}

var catalogFavoriteCmd = &cobra.Command{
	Use:     "fav <product>...",
	Aliases: []string{"favorite"},
	Short:   "Toggle products as favorites",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, args, func(p domain.Product) domain.ProductUpdate {
			return domain.ProductUpdate{Favorite: domain.Ptr(!p.Favorite)}
		})
	},
}

var catalogDoneCmd = &cobra.Command{
	Use:   "done <product>...",
	Short: "Toggle products as completed, hiding them from the default view",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, args, func(p domain.Product) domain.ProductUpdate {
			return domain.ProductUpdate{Completed: domain.Ptr(!p.Completed)}
		})
	},
}

var catalogMoveCmd = &cobra.Command{
	Use:   "move",
	Short: "Put every selected product into the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		n := len(s.Catalog.Selected())
		if n == 0 {
			fmt.Println("Nothing selected")
			return nil
		}
		if err := s.Catalog.MoveSelectedToList(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Moved %d products to the cart\n", n)
		return nil
	},
}

func init() {
	catalogCmd.Flags().StringP("search", "s", "", "only products whose name or keywords contain this")
	catalogCmd.Flags().String("sort", domain.FieldName, "sort by name, keywords, notes or owner")
	catalogCmd.Flags().BoolP("all", "a", false, "include completed products")
	catalogCmd.Flags().BoolP("favorites", "f", false, "only favorites")
	catalogCmd.Flags().Bool("selected", false, "only selected products")

	catalogAddCmd.Flags().StringP("keywords", "k", "", "search keywords")
	catalogAddCmd.Flags().StringP("notes", "n", "", "free-form notes")
	catalogAddCmd.Flags().BoolP("favorite", "f", false, "mark as favorite")
	catalogAddCmd.Flags().Bool("select", false, "select for the next move")

	catalogEditCmd.Flags().String("name", "", "new name")
	catalogEditCmd.Flags().StringP("keywords", "k", "", "new keywords")
	catalogEditCmd.Flags().StringP("notes", "n", "", "new notes")

	catalogCmd.AddCommand(catalogAddCmd, catalogEditCmd, catalogRemoveCmd,
		catalogSelectCmd, catalogFavoriteCmd, catalogDoneCmd, catalogMoveCmd)
	rootCmd.AddCommand(catalogCmd)
}

// toggle patches each named catalog product with the update flip builds.
func toggle(cmd *cobra.Command, refs []string, flip func(domain.Product) domain.ProductUpdate) error {
	s, err := signedIn(cmd.Context())
	if err != nil {
		return err
	}
	entries := s.Catalog.Entries()
	for _, ref := range refs {
		e, err := findEntry(entries, ref)
		if err != nil {
			return err
		}
		if err := s.Catalog.PatchProduct(cmd.Context(), e.Key, flip(e.Product)); err != nil {
			return err
		}
	}
	return nil
}
