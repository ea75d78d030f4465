package models

// FriendStatus is the state of a friend relationship relative to the
// bound identity.
type FriendStatus string

const (
	FriendAccepted FriendStatus = "accepted"
	FriendSent     FriendStatus = "sent"     // request sent, awaiting them
	FriendReceived FriendStatus = "received" // request received, awaiting us
)

// Friend represents a friend relationship keyed by the counterpart's
// wallet address. Profile is a denormalized copy and may be nil until
// that user's profile has been fetched.
type Friend struct {
	UserID  string       `json:"user_id"`
	Status  FriendStatus `json:"status"`
	Profile *Profile     `json:"profile,omitempty"`
}
