package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductUpdate_Fields(t *testing.T) {
	u := ProductUpdate{Name: Ptr("Milk"), Completed: Ptr(false)}

	assert.Equal(t, map[string]any{"name": "Milk", "completed": false}, u.Fields())
	assert.False(t, u.IsEmpty())
	assert.True(t, ProductUpdate{}.IsEmpty())
}

func TestProductUpdate_Apply(t *testing.T) {
	p := Product{Name: "Milk", Notes: "skimmed"}
	ProductUpdate{Name: Ptr("Oat milk"), InList: Ptr(true)}.Apply(&p)

	assert.Equal(t, Product{Name: "Oat milk", Notes: "skimmed", InList: true}, p)
}

func TestProductUpdate_OnlyTransient(t *testing.T) {
	tests := []struct {
		name string
		u    ProductUpdate
		want bool
	}{
		{"completed only", ProductUpdate{Completed: Ptr(true)}, true},
		{"all flags", ProductUpdate{Completed: Ptr(true), Selected: Ptr(false), Favorite: Ptr(true), InList: Ptr(true)}, true},
		{"name", ProductUpdate{Name: Ptr("X")}, false},
		{"flag and owner", ProductUpdate{InList: Ptr(true), Owner: Ptr("added by ana")}, false},
		{"empty", ProductUpdate{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.u.OnlyTransient())
		})
	}
}

func TestProduct_Text(t *testing.T) {
	p := Product{Name: "n", Keywords: "k", Notes: "o", Owner: "w"}
	assert.Equal(t, "n", p.Text(FieldName))
	assert.Equal(t, "k", p.Text(FieldKeywords))
	assert.Equal(t, "o", p.Text(FieldNotes))
	assert.Equal(t, "w", p.Text(FieldOwner))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleOwner, ParseRole("owner"))
	assert.Equal(t, RoleGuest, ParseRole("guest"))
	assert.Equal(t, RoleGuest, ParseRole(true))
}
