// Package id generates the opaque identifiers used as list ids, product keys
// and stream client ids.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes in use. Ids are opaque to every consumer; the prefix only helps
// when reading raw store dumps.
const (
	PrefixList    = "lst"
	PrefixProduct = "prd"
	PrefixUser    = "usr"
	PrefixStream  = "ws"
	PrefixToken   = "tok"
)

// Generate creates "prefix-nanoid", e.g. "lst-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics when the system has no entropy.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
