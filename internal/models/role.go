package models

// Role represents a server role used for grouping members and access
// control. Lower positions render higher in role lists.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Position    int    `json:"position"`
	Permissions int64  `json:"permissions"`
}
