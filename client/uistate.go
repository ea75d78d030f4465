package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ankushKun/subspace-prod-sub001/internal/db"
	"github.com/ankushKun/subspace-prod-sub001/internal/models"
)

// uiState guards the navigation document persisted separately from the
// entity cache.
type uiState struct {
	mu    sync.Mutex
	state models.UIState
}

func (u *uiState) init() {
	u.state.LastChannelByServer = make(map[string]string)
}

// UIState returns a copy of the current navigation state.
func (c *Coordinator) UIState() models.UIState {
	c.ui.mu.Lock()
	defer c.ui.mu.Unlock()

	state := c.ui.state
	state.LastChannelByServer = make(map[string]string, len(c.ui.state.LastChannelByServer))
	for k, v := range c.ui.state.LastChannelByServer {
		state.LastChannelByServer[k] = v
	}
	return state
}

// SetActiveServer switches the active server, restoring that server's
// last active channel and re-targeting the message poller at it.
func (c *Coordinator) SetActiveServer(serverID string) {
	c.ui.mu.Lock()
	c.ui.state.ActiveServerID = serverID
	channelID := c.ui.state.LastChannelByServer[serverID]
	c.ui.state.ActiveChannelID = channelID
	c.ui.mu.Unlock()

	c.saveUIState()
	c.retargetMessagePoller(serverID, channelID)
}

// SetActiveChannel switches the active channel and re-targets the message
// poller. An empty channel id stops the poller.
func (c *Coordinator) SetActiveChannel(serverID, channelID string) {
	c.ui.mu.Lock()
	c.ui.state.ActiveServerID = serverID
	c.ui.state.ActiveChannelID = channelID
	if channelID != "" {
		c.ui.state.LastChannelByServer[serverID] = channelID
	}
	c.ui.mu.Unlock()

	c.saveUIState()
	c.retargetMessagePoller(serverID, channelID)
}

// SetActiveFriend switches the active DM counterpart.
func (c *Coordinator) SetActiveFriend(userID string) {
	c.ui.mu.Lock()
	c.ui.state.ActiveFriendID = userID
	c.ui.mu.Unlock()

	c.saveUIState()
}

func (c *Coordinator) loadUIState() {
	if c.store == nil {
		return
	}
	data, err := c.store.GetDocument(db.DocUIState)
	if err != nil {
		c.log.Error(fmt.Sprintf("failed to load ui state: %v", err))
		return
	}
	if data == nil {
		return
	}
	var state models.UIState
	if err := json.Unmarshal(data, &state); err != nil {
		c.log.Warn(fmt.Sprintf("discarding malformed ui state: %v", err))
		return
	}
	if state.LastChannelByServer == nil {
		state.LastChannelByServer = make(map[string]string)
	}
	c.ui.mu.Lock()
	c.ui.state = state
	c.ui.mu.Unlock()
}

func (c *Coordinator) saveUIState() {
	if c.store == nil {
		return
	}
	state := c.UIState()
	data, err := json.Marshal(state)
	if err != nil {
		c.log.Error(fmt.Sprintf("failed to encode ui state: %v", err))
		return
	}
	if err := c.store.SetDocument(db.DocUIState, data); err != nil {
		c.log.Error(fmt.Sprintf("failed to persist ui state: %v", err))
	}
}
