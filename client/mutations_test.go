package client

import (
	"context"
	"testing"
	"time"

	"github.com/ankushKun/subspace-prod-sub001/internal/models"
	"github.com/go-playground/assert/v2"
)

func boundCoordinator(t *testing.T, svc *fakeService) *Coordinator {
	t.Helper()
	c := newTestCoordinator(t, svc)
	if !c.Bind(context.Background(), "alice") {
		t.Fatal("bind failed")
	}
	return c
}

func TestMutationsRequireBoundIdentity(t *testing.T) {
	svc := newFakeService()
	c := newTestCoordinator(t, svc)

	assert.Equal(t, false, c.CreateChannel(context.Background(), "srv1", "general", ""))
	assert.Equal(t, false, c.SendMessage(context.Background(), "srv1", "ch1", "hi", ""))
	assert.Equal(t, false, c.SendFriendRequest(context.Background(), "bob"))
	serverID, joined := c.CreateServer(context.Background(), "x", "", "")
	assert.Equal(t, "", serverID)
	assert.Equal(t, false, joined)
}

func TestCreateChannelRefetchesAfterSettle(t *testing.T) {
	svc := newFakeService()
	svc.servers["srv1"] = &models.Server{ID: "srv1", Name: "general"}
	c := boundCoordinator(t, svc)
	c.FetchServer(context.Background(), "srv1", false)

	ok := c.CreateChannel(context.Background(), "srv1", "random", "")
	assert.Equal(t, true, ok)

	// No optimistic patch for structural ops: immediately after the
	// write the cached channel list is still the pre-mutation one.
	srv, _ := c.Cache().Server("srv1")
	assert.Equal(t, 0, len(srv.Channels))

	// The settled refetch brings the new channel in.
	waitFor(t, time.Second, "settled refetch to land", func() bool {
		srv, _ := c.Cache().Server("srv1")
		return len(srv.Channels) == 1
	})
	srv, _ = c.Cache().Server("srv1")
	assert.Equal(t, "random", srv.Channels[0].Name)
}

func TestEditMessagePatchesOptimistically(t *testing.T) {
	svc := newFakeService()
	svc.messages[channelKey("srv1", "ch1")] = []models.Message{
		{ID: "m1", ChannelID: "ch1", AuthorID: "alice", Content: "helo"},
	}
	c := boundCoordinator(t, svc)
	c.FetchMessages(context.Background(), "srv1", "ch1")

	before := svc.messageCalls()
	ok := c.EditMessage(context.Background(), "srv1", "ch1", "m1", "hello")
	assert.Equal(t, true, ok)

	// The cached copy reflects the edit before any refetch fires.
	msg, found := c.Cache().Message("srv1", "ch1", "m1")
	assert.Equal(t, true, found)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, true, msg.Edited)
	assert.Equal(t, before, svc.messageCalls())

	// The settled refetch remains the source of truth.
	waitFor(t, time.Second, "settled message refetch", func() bool {
		return svc.messageCalls() > before
	})
	msg, _ = c.Cache().Message("srv1", "ch1", "m1")
	assert.Equal(t, "hello", msg.Content)
}

func TestDeleteMessageRemovesOptimistically(t *testing.T) {
	svc := newFakeService()
	svc.messages[channelKey("srv1", "ch1")] = []models.Message{
		{ID: "m1", ChannelID: "ch1", AuthorID: "alice", Content: "oops"},
	}
	c := boundCoordinator(t, svc)
	c.FetchMessages(context.Background(), "srv1", "ch1")

	ok := c.DeleteMessage(context.Background(), "srv1", "ch1", "m1")
	assert.Equal(t, true, ok)

	_, found := c.Cache().Message("srv1", "ch1", "m1")
	assert.Equal(t, false, found)
}

func TestSendMessageHasNoOptimisticInsert(t *testing.T) {
	svc := newFakeService()
	c := boundCoordinator(t, svc)

	ok := c.SendMessage(context.Background(), "srv1", "ch1", "hi there", "")
	assert.Equal(t, true, ok)
	assert.Equal(t, 0, len(c.Cache().Messages("srv1", "ch1")))

	waitFor(t, time.Second, "settled refetch to deliver the message", func() bool {
		return len(c.Cache().Messages("srv1", "ch1")) == 1
	})
	msgs := c.Cache().Messages("srv1", "ch1")
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.Equal(t, "alice", msgs[0].AuthorID)
}

func TestFailedMutationLeavesCacheUntouched(t *testing.T) {
	svc := newFakeService()
	svc.messages[channelKey("srv1", "ch1")] = []models.Message{
		{ID: "m1", ChannelID: "ch1", Content: "original"},
	}
	c := boundCoordinator(t, svc)
	c.FetchMessages(context.Background(), "srv1", "ch1")

	// Editing a message in a channel the fake does not know still
	// succeeds at the fake; use an unknown server for channel ops
	// instead to force a failure.
	ok := c.CreateChannel(context.Background(), "missing", "x", "")
	assert.Equal(t, false, ok)

	msg, _ := c.Cache().Message("srv1", "ch1", "m1")
	assert.Equal(t, "original", msg.Content)
}

func TestCreateServerPartialSuccess(t *testing.T) {
	svc := newFakeService()
	svc.failJoin = true
	c := boundCoordinator(t, svc)

	serverID, joined := c.CreateServer(context.Background(), "new server", "", "")
	if serverID == "" {
		t.Fatal("server id should be returned even when the join fails")
	}
	assert.Equal(t, false, joined)
}

func TestCachedServerIsolatedFromLaterRemoteWrites(t *testing.T) {
	svc := newFakeService()
	svc.servers["srv1"] = &models.Server{
		ID:    "srv1",
		Roles: []models.Role{{ID: "r1", Name: "admin", Position: 0}},
	}
	c := boundCoordinator(t, svc)
	c.FetchServer(context.Background(), "srv1", false)

	// A write landing remotely must not show up in the cached copy until
	// a refetch brings it in.
	svc.UpdateRole(context.Background(), "srv1", models.Role{ID: "r1", Name: "admin", Position: 5})

	srv, _ := c.Cache().Server("srv1")
	assert.Equal(t, 0, srv.Roles[0].Position)
}

func TestMoveRoleUsesAnchorPosition(t *testing.T) {
	svc := newFakeService()
	svc.servers["srv1"] = &models.Server{
		ID: "srv1",
		Roles: []models.Role{
			{ID: "r1", Name: "admin", Position: 0},
			{ID: "r2", Name: "mod", Position: 1},
			{ID: "r3", Name: "member", Position: 2},
		},
	}
	c := boundCoordinator(t, svc)
	c.FetchServer(context.Background(), "srv1", false)

	ok := c.MoveRoleBelow(context.Background(), "srv1", "r1", "r3")
	assert.Equal(t, true, ok)

	// No optimistic reorder: cached order is unchanged until refetch.
	srv, _ := c.Cache().Server("srv1")
	assert.Equal(t, 0, srv.Roles[0].Position)

	waitFor(t, time.Second, "settled role refetch", func() bool {
		srv, _ := c.Cache().Server("srv1")
		for _, role := range srv.Roles {
			if role.ID == "r1" && role.Position == 3 {
				return true
			}
		}
		return false
	})
}
