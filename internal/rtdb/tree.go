package rtdb

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
)

// The tree is copy-on-write: a write builds new maps along the written path
// and shares every untouched subtree with the previous root. Values handed to
// handlers and readers are therefore never mutated afterwards and must not be
// mutated by them.

const forbiddenKeyChars = ".#$[]"

// splitPath validates path and returns its segments. The empty path is the root.
func splitPath(path string) ([]string, error) {
	segs := remote.Split(path)
	for _, s := range segs {
		if strings.ContainsAny(s, forbiddenKeyChars) {
			return nil, errors.Validationf("invalid key %q in path %q", s, path)
		}
		if len(s) > 768 {
			return nil, errors.Validationf("key too long in path %q", path)
		}
	}
	return segs, nil
}

// normalizeValue converts an arbitrary Go value to the generic JSON shape
// (map[string]any, []any, float64, string, bool) and prunes nulls and
// empty objects.
func normalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "value is not JSON encodable")
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "value is not JSON encodable")
	}
	return prune(out), nil
}

func prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			p := prune(child)
			if p == nil {
				delete(t, k)
				continue
			}
			t[k] = p
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []any:
		// Arrays are stored as objects keyed by index.
		m := make(map[string]any, len(t))
		for i, child := range t {
			if p := prune(child); p != nil {
				m[fmt.Sprint(i)] = p
			}
		}
		if len(m) == 0 {
			return nil
		}
		return m
	default:
		return v
	}
}

// getAt returns the value at segs below node, nil when absent.
func getAt(node any, segs []string) any {
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[s]
	}
	return node
}

// setAt returns a new node with value placed at segs. A nil value deletes;
// emptied parents collapse to nil.
func setAt(node any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	old, _ := node.(map[string]any)
	next := make(map[string]any, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	child := setAt(old[segs[0]], segs[1:], value)
	if child == nil {
		delete(next, segs[0])
	} else {
		next[segs[0]] = child
	}
	if len(next) == 0 {
		return nil
	}
	return next
}

// children returns the child map of the node at segs.
func children(root any, segs []string) map[string]any {
	m, _ := getAt(root, segs).(map[string]any)
	return m
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// related reports whether a write at w can change the children of s.
func related(s, w []string) bool {
	n := len(s)
	if len(w) < n {
		n = len(w)
	}
	for i := 0; i < n; i++ {
		if s[i] != w[i] {
			return false
		}
	}
	return true
}

// leaves flattens v into path -> scalar pairs below prefix.
func leaves(prefix string, v any, out map[string]any) {
	m, ok := v.(map[string]any)
	if !ok {
		if v != nil {
			out[prefix] = v
		}
		return
	}
	for k, child := range m {
		leaves(remote.Join(prefix, k), child, out)
	}
}

// ancestors returns the proper ancestor paths of path, root excluded.
func ancestors(segs []string) []string {
	out := make([]string, 0, len(segs))
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "/"))
	}
	return out
}
