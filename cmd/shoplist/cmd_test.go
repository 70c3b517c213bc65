package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
)

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "shoplist", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)

	for _, name := range []string{"server-url", "token-file", "log-level", "env-file"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestSubcommands(t *testing.T) {
	tests := []struct {
		path []string
		use  string
	}{
		{[]string{"register"}, "register [email] [password]"},
		{[]string{"login"}, "login [email] [password]"},
		{[]string{"logout"}, "logout"},
		{[]string{"username"}, "username <name>"},
		{[]string{"account", "delete"}, "delete"},
		{[]string{"list", "select"}, "select <name-or-id>"},
		{[]string{"list", "clone"}, "clone <name>"},
		{[]string{"list", "lock"}, "lock"},
		{[]string{"catalog", "add"}, "add <name>"},
		{[]string{"catalog", "move"}, "move"},
		{[]string{"cart", "check"}, "check <product>..."},
		{[]string{"cart", "clear"}, "clear"},
	}
	for _, tt := range tests {
		cmd, _, err := rootCmd.Find(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.use, cmd.Use)
	}
}

func TestAliases(t *testing.T) {
	for _, path := range [][]string{{"c"}, {"cat", "remove"}, {"cart", "remove"}, {"lists"}} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.NotSame(t, rootCmd, cmd)
	}
}

func TestCatalogFlags(t *testing.T) {
	flags := map[*cobra.Command][]string{
		catalogCmd:     {"search", "sort", "all", "favorites", "selected"},
		catalogAddCmd:  {"keywords", "notes", "favorite", "select"},
		catalogEditCmd: {"name", "keywords", "notes"},
	}
	for cmd, names := range flags {
		for _, name := range names {
			assert.NotNil(t, cmd.Flags().Lookup(name), "%s is missing --%s", cmd.Name(), name)
		}
	}
}

func TestFindEntry(t *testing.T) {
	entries := []domain.Entry{
		{Key: "p1", Product: domain.Product{Name: "Milk"}},
		{Key: "p2", Product: domain.Product{Name: "Bread"}},
		{Key: "p3", Product: domain.Product{Name: "bread"}},
	}

	e, err := findEntry(entries, "p2")
	require.NoError(t, err)
	assert.Equal(t, "Bread", e.Product.Name)

	e, err = findEntry(entries, "MILK")
	require.NoError(t, err)
	assert.Equal(t, "p1", e.Key)

	_, err = findEntry(entries, "bread")
	assert.ErrorContains(t, err, "2 products")

	_, err = findEntry(entries, "eggs")
	assert.ErrorContains(t, err, "no product matches")
}
