// Package domain holds the shopping-list data model shared by the client
// controllers, the wire transport and the store server.
package domain

// Product field names as stored remotely.
const (
	FieldName      = "name"
	FieldKeywords  = "keywords"
	FieldNotes     = "notes"
	FieldOwner     = "owner"
	FieldCompleted = "completed"
	FieldSelected  = "selected"
	FieldFavorite  = "favorite"
	FieldInList    = "inList"
)

// Product is one entry of a catalog or of a shopping list. The same key
// identifies a product in both collections.
type Product struct {
	Name      string `json:"name" validate:"required,max=200"`
	Keywords  string `json:"keywords" validate:"max=500"`
	Notes     string `json:"notes" validate:"max=1000"`
	Owner     string `json:"owner"`
	Completed bool   `json:"completed"`
	Selected  bool   `json:"selected"`
	Favorite  bool   `json:"favorite"`
	InList    bool   `json:"inList"`
}

// Text returns the value of a string field by its remote name.
func (p Product) Text(field string) string {
	switch field {
	case FieldKeywords:
		return p.Keywords
	case FieldNotes:
		return p.Notes
	case FieldOwner:
		return p.Owner
	default:
		return p.Name
	}
}

// Fields returns every field keyed by its remote name.
func (p Product) Fields() map[string]any {
	return map[string]any{
		FieldName:      p.Name,
		FieldKeywords:  p.Keywords,
		FieldNotes:     p.Notes,
		FieldOwner:     p.Owner,
		FieldCompleted: p.Completed,
		FieldSelected:  p.Selected,
		FieldFavorite:  p.Favorite,
		FieldInList:    p.InList,
	}
}

// Entry pairs a product with its key. Views return ordered entries.
type Entry struct {
	Key     string
	Product Product
}

// ProductUpdate is a partial change. Nil fields are left untouched.
type ProductUpdate struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Keywords  *string `json:"keywords,omitempty" validate:"omitempty,max=500"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Owner     *string `json:"owner,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	Selected  *bool   `json:"selected,omitempty"`
	Favorite  *bool   `json:"favorite,omitempty"`
	InList    *bool   `json:"inList,omitempty"`
}

// Fields returns the set fields keyed by remote name, the payload of a
// partial-merge write.
func (u ProductUpdate) Fields() map[string]any {
	out := make(map[string]any, 8)
	if u.Name != nil {
		out[FieldName] = *u.Name
	}
	if u.Keywords != nil {
		out[FieldKeywords] = *u.Keywords
	}
	if u.Notes != nil {
		out[FieldNotes] = *u.Notes
	}
	if u.Owner != nil {
		out[FieldOwner] = *u.Owner
	}
	if u.Completed != nil {
		out[FieldCompleted] = *u.Completed
	}
	if u.Selected != nil {
		out[FieldSelected] = *u.Selected
	}
	if u.Favorite != nil {
		out[FieldFavorite] = *u.Favorite
	}
	if u.InList != nil {
		out[FieldInList] = *u.InList
	}
	return out
}

// IsEmpty reports whether no field is set.
func (u ProductUpdate) IsEmpty() bool {
	return len(u.Fields()) == 0
}

// Apply copies the set fields onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Keywords != nil {
		p.Keywords = *u.Keywords
	}
	if u.Notes != nil {
		p.Notes = *u.Notes
	}
	if u.Owner != nil {
		p.Owner = *u.Owner
	}
	if u.Completed != nil {
		p.Completed = *u.Completed
	}
	if u.Selected != nil {
		p.Selected = *u.Selected
	}
	if u.Favorite != nil {
		p.Favorite = *u.Favorite
	}
	if u.InList != nil {
		p.InList = *u.InList
	}
}

// OnlyTransient reports whether every set field is a UI flag
// (completed, selected, favorite, inList). Such writes are not announced.
func (u ProductUpdate) OnlyTransient() bool {
	if u.IsEmpty() {
		return false
	}
	return u.Name == nil && u.Keywords == nil && u.Notes == nil && u.Owner == nil
}

// Ptr returns a pointer to v. Handy for building updates.
func Ptr[T any](v T) *T {
	return &v
}
