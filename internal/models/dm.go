package models

import "time"

// DMConversation represents a direct-message thread with one counterpart,
// keyed by their wallet address. Process is always the *bound* identity's
// own DM process handle, never the counterpart's; fetches refresh it in
// place when it is stale.
type DMConversation struct {
	UserID   string               `json:"user_id"`
	Process  string               `json:"process"`
	Messages map[string]DMMessage `json:"messages"`
}

// DMMessage represents a single direct message.
type DMMessage struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Edited    bool      `json:"edited,omitempty"`
}
