package models

// Channel represents a chat channel within a server. An empty CategoryID
// means the channel is uncategorized.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CategoryID string `json:"category_id,omitempty"`
	Position   int    `json:"position"` // Ordering within the category
}
