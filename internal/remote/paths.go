package remote

import "strings"

// Root segments of the tree layout shared with every other client.
const (
	UsersRoot = "users"
	ListsRoot = "lists"
)

// Collection names under a list.
const (
	CatalogCollection = "catalog"
	ListCollection    = "list"
)

// Join builds a path from segments, skipping empty ones.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// Split returns the non-empty segments of path.
func Split(path string) []string {
	raw := strings.Split(path, "/")
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// User is users/{uid}: username, list and the permission map.
func User(uid string) string { return Join(UsersRoot, uid) }

// UserLists is users/{uid}/lists: listId -> role marker.
func UserLists(uid string) string { return Join(UsersRoot, uid, "lists") }

// UserList is users/{uid}/lists/{listId}.
func UserList(uid, listID string) string { return Join(UsersRoot, uid, "lists", listID) }

// Lists is the global list collection.
func Lists() string { return ListsRoot }

// List is lists/{listId}: name, owner, blocked plus both collections.
func List(listID string) string { return Join(ListsRoot, listID) }

// Catalog is lists/{listId}/catalog.
func Catalog(listID string) string { return Join(ListsRoot, listID, CatalogCollection) }

// CatalogItem is lists/{listId}/catalog/{key}.
func CatalogItem(listID, key string) string { return Join(ListsRoot, listID, CatalogCollection, key) }

// Cart is lists/{listId}/list.
func Cart(listID string) string { return Join(ListsRoot, listID, ListCollection) }

// CartItem is lists/{listId}/list/{key}.
func CartItem(listID, key string) string { return Join(ListsRoot, listID, ListCollection, key) }
