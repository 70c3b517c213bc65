// Package normalize folds product text for sorting and searching.
package normalize

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Policy selects how strings are folded before comparison.
type Policy int

const (
	// CaseOnly lowercases.
	CaseOnly Policy = iota
	// Diacritics decomposes, drops combining marks and lowercases.
	Diacritics
)

// Combining Diacritical Marks block, U+0300..U+036F.
func isCombiningMark(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
}

// Clean returns s decomposed (NFD), stripped of combining diacritical marks
// and lowercased: "Ápple" -> "apple".
func Clean(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isCombiningMark)))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Fold lowercases s.
func Fold(s string) string {
	return strings.ToLower(s)
}

// Apply folds s under p.
func (p Policy) Apply(s string) string {
	if p == Diacritics {
		return Clean(s)
	}
	return Fold(s)
}

// Contains reports whether needle occurs in haystack once both are cleaned.
func Contains(haystack, needle string) bool {
	return strings.Contains(Clean(haystack), Clean(needle))
}
