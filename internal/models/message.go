package models

import "time"

// Message represents a chat message. Messages are cached unordered per
// channel; display order is reconstructed from Timestamp at read time.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Edited    bool      `json:"edited,omitempty"`
	ReplyTo   string    `json:"reply_to,omitempty"`
}
