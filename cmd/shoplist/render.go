package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/inesosoares6/shopping-list-v2/internal/domain"
)

// findEntry resolves a product by key, then by case-insensitive name.
func findEntry(entries []domain.Entry, ref string) (domain.Entry, error) {
	for _, e := range entries {
		if e.Key == ref {
			return e, nil
		}
	}
	var matches []domain.Entry
	for _, e := range entries {
		if strings.EqualFold(e.Product.Name, ref) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Entry{}, fmt.Errorf("no product matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return domain.Entry{}, fmt.Errorf("%d products are called %q, use the key instead", len(matches), ref)
	}
}

func printEntries(entries []domain.Entry, showOwner bool) {
	faint := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	for _, e := range entries {
		p := e.Product
		flags := ""
		if p.Favorite {
			flags += color.YellowString("★")
		} else {
			flags += " "
		}
		if p.Selected {
			flags += color.CyanString("●")
		} else {
			flags += " "
		}
		if p.InList && !showOwner {
			flags += color.GreenString("🛒")
		}

		name := bold(p.Name)
		if p.Completed {
			name = faint(color.New(color.CrossedOut).Sprint(p.Name))
		}

		var extra []string
		if p.Keywords != "" {
			extra = append(extra, p.Keywords)
		}
		if p.Notes != "" {
			extra = append(extra, p.Notes)
		}
		if showOwner && p.Owner != "" {
			extra = append(extra, p.Owner)
		}

		line := fmt.Sprintf("%s %s %s", flags, name, faint(e.Key))
		if len(extra) > 0 {
			line += " " + faint("· "+strings.Join(extra, " · "))
		}
		fmt.Println(line)
	}
}
