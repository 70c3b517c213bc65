package domain

// Settings fields as stored under users/{uid}.
const (
	SettingUsername = "username"
	SettingList     = "list"
	SettingLists    = "lists"
)

// List metadata fields as stored under lists/{listId}.
const (
	MetaName    = "name"
	MetaOwner   = "owner"
	MetaBlocked = "blocked"
)

// Settings is the private state of one user. List is the active list id;
// empty means none selected.
type Settings struct {
	Username string `json:"username"`
	List     string `json:"list"`
}

// Missing reports whether any required field is still empty.
func (s Settings) Missing() bool {
	return s.Username == "" || s.List == ""
}

// Role is the permission marker stored under users/{uid}/lists/{listId}.
type Role string

const (
	RoleOwner Role = "owner"
	RoleGuest Role = "guest"
)

// ParseRole reads a stored permission marker. Older clients wrote plain
// true; anything that is not "owner" grants guest access.
func ParseRole(v any) Role {
	if s, ok := v.(string); ok && Role(s) == RoleOwner {
		return RoleOwner
	}
	return RoleGuest
}

// ListMetadata describes one shared list.
type ListMetadata struct {
	Name    string `json:"name" validate:"required,max=100"`
	Owner   string `json:"owner"`
	Blocked bool   `json:"blocked"`
}

// Fields returns the metadata keyed by remote name.
func (m ListMetadata) Fields() map[string]any {
	return map[string]any{
		MetaName:    m.Name,
		MetaOwner:   m.Owner,
		MetaBlocked: m.Blocked,
	}
}

// Option is one entry of a list selector.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Prompt names an onboarding question the UI should ask.
type Prompt string

const (
	PromptUsername Prompt = "username"
	PromptList     Prompt = "list"
)
