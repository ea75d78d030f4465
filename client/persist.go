package client

import (
	"encoding/json"
	"fmt"

	"github.com/ankushKun/subspace-prod-sub001/internal/db"
	"github.com/ankushKun/subspace-prod-sub001/internal/models"
	"github.com/tryfix/log"
)

// cacheSnapshot is the persisted subset of the cache. Loading guards, the
// bound identity and other in-flight state are process-lifetime-only and
// deliberately absent, so a deserialize/serialize round trip is a fixed
// point for everything here.
type cacheSnapshot struct {
	Servers         map[string]*models.Server                       `json:"servers"`
	Messages        map[string]map[string]map[string]models.Message `json:"messages"`
	Profile         *models.Profile                                 `json:"profile"`
	Profiles        map[string]*models.Profile                      `json:"profiles"`
	Friends         map[string]models.Friend                        `json:"friends"`
	DMConversations map[string]*models.DMConversation               `json:"dmConversations"`
}

// snapshot deep-copies the persisted subset under the read lock so the
// caller can serialize it without racing ongoing merges.
func (c *Cache) snapshot() *cacheSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &cacheSnapshot{
		Servers:         make(map[string]*models.Server, len(c.servers)),
		Messages:        make(map[string]map[string]map[string]models.Message, len(c.messages)),
		Profile:         c.profile,
		Profiles:        make(map[string]*models.Profile, len(c.profiles)),
		Friends:         make(map[string]models.Friend, len(c.friends)),
		DMConversations: make(map[string]*models.DMConversation, len(c.dms)),
	}
	for id, srv := range c.servers {
		snap.Servers[id] = srv
	}
	for serverID, byChannel := range c.messages {
		channels := make(map[string]map[string]models.Message, len(byChannel))
		for channelID, byID := range byChannel {
			msgs := make(map[string]models.Message, len(byID))
			for id, msg := range byID {
				msgs[id] = msg
			}
			channels[channelID] = msgs
		}
		snap.Messages[serverID] = channels
	}
	for id, p := range c.profiles {
		snap.Profiles[id] = p
	}
	for id, f := range c.friends {
		snap.Friends[id] = f
	}
	for id, convo := range c.dms {
		snap.DMConversations[id] = convo
	}
	return snap
}

// restore replaces the cache contents with a rehydrated snapshot.
func (c *Cache) restore(snap *cacheSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.servers = snap.Servers
	c.messages = snap.Messages
	c.profile = snap.Profile
	c.profiles = snap.Profiles
	c.friends = snap.Friends
	c.dms = snap.DMConversations
}

// Flush serializes the persisted cache subset to the store.
func (c *Coordinator) Flush() error {
	if c.store == nil {
		return nil
	}
	data, err := json.Marshal(c.cache.snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	return c.store.SetDocument(db.DocCache, data)
}

// rawSnapshot defers per-entry decoding so one malformed persisted entry
// is skipped instead of aborting the whole rehydration.
type rawSnapshot struct {
	Servers         map[string]json.RawMessage `json:"servers"`
	Messages        map[string]json.RawMessage `json:"messages"`
	Profile         json.RawMessage            `json:"profile"`
	Profiles        map[string]json.RawMessage `json:"profiles"`
	Friends         map[string]json.RawMessage `json:"friends"`
	DMConversations map[string]json.RawMessage `json:"dmConversations"`
}

// rehydrate populates the cache from the persisted document without
// contacting the remote service.
func (c *Coordinator) rehydrate() {
	if c.store == nil {
		return
	}
	data, err := c.store.GetDocument(db.DocCache)
	if err != nil {
		c.log.Error(fmt.Sprintf("failed to load persisted cache: %v", err))
		return
	}
	if data == nil {
		return
	}

	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		c.log.Warn(fmt.Sprintf("discarding malformed persisted cache: %v", err))
		return
	}

	snap := &cacheSnapshot{
		Servers:         rehydrateServers(raw.Servers, c.log),
		Messages:        decodeEntries[map[string]map[string]models.Message](raw.Messages, "messages", c.log),
		Profiles:        decodeEntries[*models.Profile](raw.Profiles, "profile", c.log),
		Friends:         decodeEntries[models.Friend](raw.Friends, "friend", c.log),
		DMConversations: decodeEntries[*models.DMConversation](raw.DMConversations, "dm conversation", c.log),
	}
	for id, p := range snap.Profiles {
		if p == nil {
			delete(snap.Profiles, id)
		}
	}
	for id, convo := range snap.DMConversations {
		if convo == nil {
			delete(snap.DMConversations, id)
			continue
		}
		if convo.Messages == nil {
			convo.Messages = make(map[string]models.DMMessage)
		}
	}
	if len(raw.Profile) > 0 && string(raw.Profile) != "null" {
		var p models.Profile
		if err := json.Unmarshal(raw.Profile, &p); err != nil {
			c.log.Warn(fmt.Sprintf("skipping malformed persisted own profile: %v", err))
		} else {
			snap.Profile = &p
		}
	}
	c.cache.restore(snap)
}

// rehydrateServers re-derives the working server mapping from whatever
// was persisted. A member list mid-load at shutdown was never attached,
// so a persisted "loading" flag degrades to not-loaded.
func rehydrateServers(raw map[string]json.RawMessage, logger log.Logger) map[string]*models.Server {
	servers := decodeEntries[*models.Server](raw, "server", logger)
	for id, srv := range servers {
		if srv == nil {
			delete(servers, id)
			continue
		}
		if srv.MemberState == models.MembersLoading {
			srv.MemberState = models.MembersNotLoaded
		}
	}
	return servers
}

func decodeEntries[T any](raw map[string]json.RawMessage, what string, logger log.Logger) map[string]T {
	out := make(map[string]T, len(raw))
	for key, data := range raw {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			logger.Warn(fmt.Sprintf("skipping malformed persisted %s %s: %v", what, key, err))
			continue
		}
		out[key] = v
	}
	return out
}
