package models

// MemberLoadState tracks whether a server's member list has been fetched.
type MemberLoadState int

const (
	MembersNotLoaded MemberLoadState = iota
	MembersLoading
	MembersLoaded
)

// Server represents a chat server and its locally known substructure.
// Members are loaded out-of-band and may be absent even after the rest of
// the server has been fetched; MemberState records which case applies.
type Server struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	IconURL     string          `json:"icon_url"`
	OwnerID     string          `json:"owner_id"`
	Channels    []Channel       `json:"channels"`
	Categories  []Category      `json:"categories"`
	Roles       []Role          `json:"roles"`
	Members     []Member        `json:"members,omitempty"`
	MemberState MemberLoadState `json:"member_state"`
}

// Member represents a user's membership in a server.
type Member struct {
	UserID   string   `json:"user_id"`
	Nickname string   `json:"nickname,omitempty"`
	RoleIDs  []string `json:"role_ids,omitempty"`
}
