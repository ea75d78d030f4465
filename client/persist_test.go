package client

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ankushKun/subspace-prod-sub001/internal/db"
	"github.com/ankushKun/subspace-prod-sub001/internal/models"
	"github.com/go-playground/assert/v2"
)

func testStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.NewStore(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func populatedCoordinator(t *testing.T, store *db.Store) *Coordinator {
	t.Helper()
	c := NewCoordinator(testConfig(), newFakeService(), store, testLogger())
	c.Cache().PutServer(&models.Server{
		ID:   "srv1",
		Name: "general",
		Channels: []models.Channel{
			{ID: "ch1", Name: "chat", Position: 0},
		},
	})
	c.Cache().PutMembers("srv1", []models.Member{{UserID: "alice"}, {UserID: "bob"}})
	c.Cache().MergeMessages("srv1", "ch1", []models.Message{
		{ID: "m1", ChannelID: "ch1", AuthorID: "alice", Content: "hello", Timestamp: time.Unix(100, 0).UTC()},
		{ID: "m2", ChannelID: "ch1", AuthorID: "bob", Content: "hi", Timestamp: time.Unix(200, 0).UTC()},
	})
	c.Cache().SetOwnProfile(&models.Profile{UserID: "alice", Username: "alice"})
	c.Cache().PutProfile(&models.Profile{UserID: "bob", Username: "bob"})
	c.Cache().ReplaceFriends([]models.Friend{{UserID: "bob", Status: models.FriendAccepted}})
	c.Cache().MergeDMMessages("bob", "alice-process", []models.DMMessage{
		{ID: "d1", AuthorID: "bob", Content: "yo", Timestamp: time.Unix(300, 0).UTC()},
	})
	return c
}

func TestPersistenceRoundTrip(t *testing.T) {
	store := testStore(t)
	c1 := populatedCoordinator(t, store)
	if err := c1.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	// A fresh coordinator rehydrates from the same store.
	c2 := NewCoordinator(testConfig(), newFakeService(), store, testLogger())

	srv, ok := c2.Cache().Server("srv1")
	assert.Equal(t, true, ok)
	assert.Equal(t, "general", srv.Name)
	assert.Equal(t, 2, len(srv.Members))
	assert.Equal(t, models.MembersLoaded, srv.MemberState)

	msgs := c2.Cache().Messages("srv1", "ch1")
	assert.Equal(t, 2, len(msgs))
	assert.Equal(t, "m1", msgs[0].ID)

	own := c2.Cache().OwnProfile()
	if own == nil || own.UserID != "alice" {
		t.Fatalf("own profile not rehydrated: %+v", own)
	}
	_, ok = c2.Cache().Profile("bob")
	assert.Equal(t, true, ok)

	f, ok := c2.Cache().Friend("bob")
	assert.Equal(t, true, ok)
	assert.Equal(t, models.FriendAccepted, f.Status)

	convo, ok := c2.Cache().DM("bob")
	assert.Equal(t, true, ok)
	assert.Equal(t, "alice-process", convo.Process)
	assert.Equal(t, 1, len(convo.Messages))
}

func TestPersistenceRoundTripIsFixedPoint(t *testing.T) {
	store := testStore(t)
	c1 := populatedCoordinator(t, store)
	if err := c1.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	first, err := store.GetDocument(db.DocCache)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	c2 := NewCoordinator(testConfig(), newFakeService(), store, testLogger())
	if err := c2.Flush(); err != nil {
		t.Fatalf("reflush failed: %v", err)
	}
	second, err := store.GetDocument(db.DocCache)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	assert.Equal(t, string(first), string(second))
}

func TestRehydrationSkipsMalformedEntries(t *testing.T) {
	store := testStore(t)
	doc := `{
		"servers": {
			"good": {"id": "good", "name": "fine"},
			"bad": 42
		},
		"messages": {"good": {"ch1": {"m1": {"id": "m1"}}}},
		"profile": null,
		"profiles": {"alice": {"user_id": "alice"}, "broken": "nope"},
		"friends": {"bob": {"user_id": "bob", "status": "accepted"}},
		"dmConversations": {"bob": {"user_id": "bob", "process": "p"}}
	}`
	if err := store.SetDocument(db.DocCache, []byte(doc)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	c := NewCoordinator(testConfig(), newFakeService(), store, testLogger())

	_, ok := c.Cache().Server("good")
	assert.Equal(t, true, ok)
	_, ok = c.Cache().Server("bad")
	assert.Equal(t, false, ok)

	_, ok = c.Cache().Profile("alice")
	assert.Equal(t, true, ok)
	_, ok = c.Cache().Profile("broken")
	assert.Equal(t, false, ok)

	assert.Equal(t, 1, len(c.Cache().Messages("good", "ch1")))

	// A conversation persisted without messages gets a usable map.
	convo, ok := c.Cache().DM("bob")
	assert.Equal(t, true, ok)
	assert.Equal(t, 0, len(convo.Messages))
}

func TestRehydrationNormalizesMidLoadMemberState(t *testing.T) {
	store := testStore(t)
	doc := `{"servers": {"srv1": {"id": "srv1", "member_state": 1}}}`
	if err := store.SetDocument(db.DocCache, []byte(doc)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	c := NewCoordinator(testConfig(), newFakeService(), store, testLogger())

	srv, ok := c.Cache().Server("srv1")
	assert.Equal(t, true, ok)
	assert.Equal(t, models.MembersNotLoaded, srv.MemberState)
}

func TestGuardsAreNeverPersisted(t *testing.T) {
	store := testStore(t)
	c1 := NewCoordinator(testConfig(), newFakeService(), store, testLogger())
	c1.Cache().PutServer(&models.Server{ID: "srv1"})
	release, _ := c1.cache.guards.tryAcquire(guardServer, "srv1")
	defer release()
	if err := c1.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	c2 := NewCoordinator(testConfig(), newFakeService(), store, testLogger())
	assert.Equal(t, false, c2.cache.guards.held(guardServer, "srv1"))
}
