package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathLayout(t *testing.T) {
	assert.Equal(t, "users/u1", User("u1"))
	assert.Equal(t, "users/u1/lists", UserLists("u1"))
	assert.Equal(t, "users/u1/lists/l1", UserList("u1", "l1"))
	assert.Equal(t, "lists", Lists())
	assert.Equal(t, "lists/l1", List("l1"))
	assert.Equal(t, "lists/l1/catalog", Catalog("l1"))
	assert.Equal(t, "lists/l1/catalog/p1", CatalogItem("l1", "p1"))
	assert.Equal(t, "lists/l1/list", Cart("l1"))
	assert.Equal(t, "lists/l1/list/p1", CartItem("l1", "p1"))
}

func TestJoinAndSplit(t *testing.T) {
	assert.Equal(t, "a/b/c", Join("/a/", "", "b", "c/"))
	assert.Equal(t, []string{"a", "b"}, Split("/a//b/"))
	assert.Empty(t, Split(""))
}

func TestSnapshot_Decode(t *testing.T) {
	snap := Snapshot{Key: "p1", Value: map[string]any{"name": "Milk", "inList": true}}

	var got struct {
		Name   string `json:"name"`
		InList bool   `json:"inList"`
	}
	assert.NoError(t, snap.Decode(&got))
	assert.Equal(t, "Milk", got.Name)
	assert.True(t, got.InList)
	assert.True(t, snap.Exists())
	assert.False(t, Snapshot{}.Exists())
}
