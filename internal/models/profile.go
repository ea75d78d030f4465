package models

import (
	"encoding/json"
	"strings"
)

// Profile represents a user profile keyed by wallet address.
type Profile struct {
	UserID        string      `json:"user_id"` // wallet address
	Username      string      `json:"username"`
	DisplayName   string      `json:"display_name"`
	PfpURL        string      `json:"pfp_url"`
	Bio           string      `json:"bio"`
	DMProcess     string      `json:"dm_process,omitempty"` // handle of this user's own DM process
	ServersJoined []ServerRef `json:"servers_joined"`
	Friends       FriendGraph `json:"friends"`
}

// FriendGraph holds the three relationship sets of a profile, each a list
// of counterpart wallet addresses.
type FriendGraph struct {
	Accepted []string `json:"accepted"`
	Sent     []string `json:"sent"`
	Received []string `json:"received"`
}

// ServerRef is an entry in a profile's joined-server list. The remote
// service returns these either as a bare server id string or as a small
// record carrying one, so it unmarshals from both shapes.
type ServerRef struct {
	ServerID string `json:"server_id"`
	OrderID  int    `json:"order_id,omitempty"`
}

// UnmarshalJSON accepts either "srv1" or {"server_id": "srv1", ...}.
func (r *ServerRef) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		r.ServerID = id
		return nil
	}
	var rec struct {
		ServerID string `json:"server_id"`
		ID       string `json:"id"`
		OrderID  int    `json:"order_id"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	r.ServerID = rec.ServerID
	if r.ServerID == "" {
		r.ServerID = rec.ID
	}
	r.OrderID = rec.OrderID
	return nil
}
