package client

import (
	"context"
	"time"
)

// startProfilePoller refreshes the bound identity's profile on a fixed
// cadence while that binding is current. Cancellation is cooperative:
// the generation is checked each tick, so the poller stops within one
// tick of the binding being superseded.
func (c *Coordinator) startProfilePoller() {
	g := c.generation()
	addr := c.Address()
	go func() {
		ticker := time.NewTicker(c.cfg.ProfilePollInterval)
		defer ticker.Stop()
		for range ticker.C {
			if !c.alive(g) || c.Address() != addr {
				return
			}
			c.FetchProfile(context.Background(), addr, true)
		}
	}()
}

// retargetMessagePoller supersedes any running message poller and, if a
// channel is active, starts a new one polling that channel's messages.
func (c *Coordinator) retargetMessagePoller(serverID, channelID string) {
	epoch := c.msgEpoch.Add(1)
	if serverID == "" || channelID == "" {
		return
	}
	g := c.generation()
	go func() {
		ticker := time.NewTicker(c.cfg.MessagePollInterval)
		defer ticker.Stop()
		for range ticker.C {
			if c.msgEpoch.Load() != epoch || !c.alive(g) {
				return
			}
			c.FetchMessages(context.Background(), serverID, channelID)
		}
	}()
}
