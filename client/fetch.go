package client

import (
	"context"
	"fmt"

	"github.com/ankushKun/subspace-prod-sub001/internal/models"
)

// FetchProfile returns a profile, fetching from the remote service on a
// cache miss or when force is set. On guard collision or remote failure
// it falls back to the cached value. Fetching the bound identity's own
// profile restarts the joined-server background walk.
func (c *Coordinator) FetchProfile(ctx context.Context, userID string, force bool) *models.Profile {
	if userID == "" {
		return nil
	}
	cached, ok := c.cache.Profile(userID)
	if ok && !force {
		return cached
	}

	release, acquired := c.cache.guards.tryAcquire(guardProfile, userID)
	if !acquired {
		return cached
	}
	defer release()

	p, err := c.remote.GetProfile(ctx, userID)
	if err != nil {
		c.log.Error(fmt.Sprintf("failed to fetch profile %s: %v", userID, err))
		return cached
	}

	if p.UserID == c.Address() {
		c.cache.SetOwnProfile(p)
		c.startLoader(p.ServersJoined)
	} else {
		c.cache.PutProfile(p)
	}
	c.flush()
	return p
}

// FetchServer returns a server, fetching full detail on a cache miss or
// when force is set. The fetched entry is merged so an out-of-band member
// list survives. Falls back to the cached value on guard collision or
// failure.
func (c *Coordinator) FetchServer(ctx context.Context, serverID string, force bool) *models.Server {
	if serverID == "" {
		return nil
	}
	cached, ok := c.cache.Server(serverID)
	if ok && !force {
		return cached
	}

	release, acquired := c.cache.guards.tryAcquire(guardServer, serverID)
	if !acquired {
		return cached
	}
	defer release()

	srv, err := c.remote.GetServer(ctx, serverID)
	if err != nil {
		c.log.Error(fmt.Sprintf("failed to fetch server %s: %v", serverID, err))
		return cached
	}

	merged := c.cache.MergeServer(srv)
	c.flush()
	c.notifyServerUpdate(serverID)
	return merged
}

// FetchMembers loads a server's member list out-of-band. The three-state
// member flag on the server entry doubles as the guard: a fetch already
// in flight leaves the cached list as is.
func (c *Coordinator) FetchMembers(ctx context.Context, serverID string) []models.Member {
	srv, ok := c.cache.Server(serverID)
	if !ok {
		return nil
	}
	if srv.MemberState == models.MembersLoading {
		return srv.Members
	}
	prevState := srv.MemberState
	if !c.cache.SetMemberState(serverID, models.MembersLoading) {
		return srv.Members
	}

	members, err := c.remote.ListMembers(ctx, serverID)
	if err != nil {
		c.log.Error(fmt.Sprintf("failed to fetch members of %s: %v", serverID, err))
		c.cache.SetMemberState(serverID, prevState)
		return srv.Members
	}

	c.cache.PutMembers(serverID, members)
	c.flush()
	return members
}

// FetchMessages loads a channel's messages and upserts them into the
// cache. Message fetches are not guarded: the per-id upsert makes
// overlapping fetches idempotent.
func (c *Coordinator) FetchMessages(ctx context.Context, serverID, channelID string) []models.Message {
	msgs, err := c.remote.ListMessages(ctx, serverID, channelID)
	if err != nil {
		c.log.Error(fmt.Sprintf("failed to fetch messages %s/%s: %v", serverID, channelID, err))
		return c.cache.Messages(serverID, channelID)
	}

	c.cache.MergeMessages(serverID, channelID, msgs)
	c.flush()
	return c.cache.Messages(serverID, channelID)
}

// FetchFriends refreshes the bound identity's friend list. Requires a
// bound identity; returns the cached list on guard collision or failure.
func (c *Coordinator) FetchFriends(ctx context.Context) []models.Friend {
	addr := c.Address()
	if addr == "" {
		return nil
	}

	release, acquired := c.cache.guards.tryAcquire(guardFriend, addr)
	if !acquired {
		return c.cache.Friends()
	}
	defer release()

	friends, err := c.remote.ListFriends(ctx)
	if err != nil {
		c.log.Error(fmt.Sprintf("failed to fetch friends: %v", err))
		return c.cache.Friends()
	}

	c.cache.ReplaceFriends(friends)
	c.flush()
	return c.cache.Friends()
}

// FetchDM refreshes a direct-message conversation, upserting fetched
// messages and forcibly re-pointing the conversation at the bound
// identity's own DM process handle. Requires a bound identity.
func (c *Coordinator) FetchDM(ctx context.Context, userID string) *models.DMConversation {
	if c.Address() == "" || userID == "" {
		return nil
	}
	cached, _ := c.cache.DM(userID)

	release, acquired := c.cache.guards.tryAcquire(guardDM, userID)
	if !acquired {
		return cached
	}
	defer release()

	msgs, err := c.remote.ListDMMessages(ctx, userID)
	if err != nil {
		c.log.Error(fmt.Sprintf("failed to fetch dm conversation %s: %v", userID, err))
		return cached
	}

	var ownProcess string
	if own := c.cache.OwnProfile(); own != nil {
		ownProcess = own.DMProcess
	}
	convo := c.cache.MergeDMMessages(userID, ownProcess, msgs)
	c.flush()
	return convo
}
