package models

// UIState is the small navigation document persisted independently of the
// entity cache. Field names match the stored JSON document.
type UIState struct {
	ActiveServerID      string            `json:"activeServerId"`
	ActiveChannelID     string            `json:"activeChannelId"`
	ActiveFriendID      string            `json:"activeFriendId"`
	LastChannelByServer map[string]string `json:"lastChannelByServer"`
}
