package client

import (
	"sort"
	"sync"

	"github.com/ankushKun/subspace-prod-sub001/internal/models"
)

// Cache is the entity cache store: the single local copy of every remote
// entity, plus the loading-guard side-table. All mutation goes through its
// methods so the merge policy is always applied. Values handed out are
// snapshots; callers must not mutate them.
type Cache struct {
	mu       sync.RWMutex
	servers  map[string]*models.Server
	messages map[string]map[string]map[string]models.Message // serverID -> channelID -> messageID
	profile  *models.Profile
	profiles map[string]*models.Profile
	friends  map[string]models.Friend
	dms      map[string]*models.DMConversation

	guards *loadGuards
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		servers:  make(map[string]*models.Server),
		messages: make(map[string]map[string]map[string]models.Message),
		profiles: make(map[string]*models.Profile),
		friends:  make(map[string]models.Friend),
		dms:      make(map[string]*models.DMConversation),
		guards:   newLoadGuards(),
	}
}

// Server returns the cached server, or nil and false on a miss. A miss
// never triggers a fetch; fetching is the caller's responsibility.
func (c *Cache) Server(serverID string) (*models.Server, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	srv, ok := c.servers[serverID]
	return srv, ok
}

// Servers returns all cached servers sorted by name.
func (c *Cache) Servers() []*models.Server {
	c.mu.RLock()
	defer c.mu.RUnlock()

	servers := make([]*models.Server, 0, len(c.servers))
	for _, srv := range c.servers {
		servers = append(servers, srv)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
	return servers
}

// PutServer stores a server verbatim, bypassing the merge policy. Only
// safe for entries with no locally loaded substructure to preserve.
func (c *Cache) PutServer(srv *models.Server) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers[srv.ID] = srv
}

// MergeServer combines a freshly fetched server with the cached entry. A
// member list loaded out-of-band survives a refresh that does not carry
// one: the merged result keeps the old list and load state while every
// other field takes the incoming value.
func (c *Cache) MergeServer(incoming *models.Server) *models.Server {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := *incoming
	if prev, ok := c.servers[incoming.ID]; ok {
		if prev.MemberState == models.MembersLoaded && len(incoming.Members) == 0 {
			merged.Members = prev.Members
			merged.MemberState = models.MembersLoaded
		}
	}
	c.servers[incoming.ID] = &merged
	return &merged
}

// PutMembers attaches a fetched member list to a server and marks it
// loaded. A copy of the server entry is stored so prior snapshots stay
// intact.
func (c *Cache) PutMembers(serverID string, members []models.Member) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.servers[serverID]
	if !ok {
		return
	}
	next := *prev
	next.Members = members
	next.MemberState = models.MembersLoaded
	c.servers[serverID] = &next
}

// SetMemberState transitions a server's member-list load state. It
// returns false when the server is unknown or already in the given state.
func (c *Cache) SetMemberState(serverID string, state models.MemberLoadState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.servers[serverID]
	if !ok || prev.MemberState == state {
		return false
	}
	next := *prev
	next.MemberState = state
	c.servers[serverID] = &next
	return true
}

// Message returns one cached message.
func (c *Cache) Message(serverID, channelID, messageID string) (models.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msg, ok := c.messages[serverID][channelID][messageID]
	return msg, ok
}

// Messages returns a channel's cached messages ordered by timestamp.
func (c *Cache) Messages(serverID, channelID string) []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byID := c.messages[serverID][channelID]
	msgs := make([]models.Message, 0, len(byID))
	for _, msg := range byID {
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	return msgs
}

// MergeMessages upserts fetched messages into a channel's mapping keyed
// by message id. The mapping is never wholesale-replaced, so concurrent
// fetches of overlapping ranges are idempotent.
func (c *Cache) MergeMessages(serverID, channelID string, msgs []models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byChannel, ok := c.messages[serverID]
	if !ok {
		byChannel = make(map[string]map[string]models.Message)
		c.messages[serverID] = byChannel
	}
	byID, ok := byChannel[channelID]
	if !ok {
		byID = make(map[string]models.Message)
		byChannel[channelID] = byID
	}
	for _, msg := range msgs {
		byID[msg.ID] = msg
	}
}

// PatchMessage applies an in-place edit to one cached message, returning
// false if it is not cached.
func (c *Cache) PatchMessage(serverID, channelID, messageID string, patch func(*models.Message)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := c.messages[serverID][channelID]
	msg, ok := byID[messageID]
	if !ok {
		return false
	}
	patch(&msg)
	byID[messageID] = msg
	return true
}

// RemoveMessage drops one cached message.
func (c *Cache) RemoveMessage(serverID, channelID, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.messages[serverID][channelID], messageID)
}

// OwnProfile returns the bound identity's profile, or nil if not fetched.
func (c *Cache) OwnProfile() *models.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// SetOwnProfile stores the bound identity's profile, also indexing it in
// the shared profile mapping.
func (c *Cache) SetOwnProfile(p *models.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = p
	if p != nil {
		c.profiles[p.UserID] = p
	}
}

// Profile returns a cached profile by wallet address.
func (c *Cache) Profile(userID string) (*models.Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[userID]
	return p, ok
}

// PutProfile stores a fetched profile.
func (c *Cache) PutProfile(p *models.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[p.UserID] = p
	if c.profile != nil && c.profile.UserID == p.UserID {
		c.profile = p
	}
}

// Friend returns a cached friend relationship.
func (c *Cache) Friend(userID string) (models.Friend, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.friends[userID]
	return f, ok
}

// Friends returns all cached friend relationships.
func (c *Cache) Friends() []models.Friend {
	c.mu.RLock()
	defer c.mu.RUnlock()

	friends := make([]models.Friend, 0, len(c.friends))
	for _, f := range c.friends {
		friends = append(friends, f)
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].UserID < friends[j].UserID })
	return friends
}

// ReplaceFriends swaps in a freshly listed friend set. Friends carry no
// preservable substructure, so wholesale replacement is safe; cached
// profile copies are re-attached where the listing lacks them.
func (c *Cache) ReplaceFriends(friends []models.Friend) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[string]models.Friend, len(friends))
	for _, f := range friends {
		if f.Profile == nil {
			f.Profile = c.profiles[f.UserID]
		}
		next[f.UserID] = f
	}
	c.friends = next
}

// DM returns a cached direct-message conversation.
func (c *Cache) DM(userID string) (*models.DMConversation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	convo, ok := c.dms[userID]
	return convo, ok
}

// DMs returns all cached conversations.
func (c *Cache) DMs() []*models.DMConversation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	convos := make([]*models.DMConversation, 0, len(c.dms))
	for _, convo := range c.dms {
		convos = append(convos, convo)
	}
	sort.Slice(convos, func(i, j int) bool { return convos[i].UserID < convos[j].UserID })
	return convos
}

// MergeDMMessages upserts fetched DM messages into a conversation and
// forcibly refreshes its process handle to the bound identity's own,
// correcting any stale persisted handle.
func (c *Cache) MergeDMMessages(userID, ownProcess string, msgs []models.DMMessage) *models.DMConversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.dms[userID]
	next := &models.DMConversation{
		UserID:   userID,
		Process:  ownProcess,
		Messages: make(map[string]models.DMMessage),
	}
	if prev != nil {
		for id, msg := range prev.Messages {
			next.Messages[id] = msg
		}
		if ownProcess == "" {
			// Own profile not fetched yet; keep whatever handle we had.
			next.Process = prev.Process
		}
	}
	for _, msg := range msgs {
		next.Messages[msg.ID] = msg
	}
	c.dms[userID] = next
	return next
}

// ClearIdentityScoped empties the identity-scoped mappings (friends, DM
// conversations and their loading guards) while keeping server, profile
// and message caches, which are not identity-secret.
func (c *Cache) ClearIdentityScoped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.friends = make(map[string]models.Friend)
	c.dms = make(map[string]*models.DMConversation)
	c.guards.clear(guardFriend)
	c.guards.clear(guardDM)
}

// ClearAll empties every mapping and guard set.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers = make(map[string]*models.Server)
	c.messages = make(map[string]map[string]map[string]models.Message)
	c.profile = nil
	c.profiles = make(map[string]*models.Profile)
	c.friends = make(map[string]models.Friend)
	c.dms = make(map[string]*models.DMConversation)
	c.guards.clearAll()
}
