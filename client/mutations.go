package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ankushKun/subspace-prod-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Every mutation follows the same pattern: perform the remote write and,
// on success, schedule a forced refetch of the owning entity after a
// settle delay instead of trusting the write's own return value: the
// backend is eventually consistent and the write result does not reflect
// the authoritative merged state. On failure the cache is left untouched
// and false is returned; retries are the caller's concern.
//
// Only message edit/delete additionally patch the cache optimistically so
// the UI reflects the change before the refetch lands; the refetch
// remains the source of truth and may overwrite the patch.

func (c *Coordinator) scheduleServerRefetch(serverID string) {
	c.after(c.cfg.StructuralSettle, func() {
		c.FetchServer(context.Background(), serverID, true)
	})
}

func (c *Coordinator) scheduleMessageRefetch(serverID, channelID string) {
	c.after(c.cfg.MessageSettle, func() {
		c.FetchMessages(context.Background(), serverID, channelID)
	})
}

func (c *Coordinator) scheduleProfileRefetch() {
	addr := c.Address()
	if addr == "" {
		return
	}
	c.after(c.cfg.StructuralSettle, func() {
		c.FetchProfile(context.Background(), addr, true)
	})
}

func (c *Coordinator) scheduleFriendsRefetch() {
	c.after(c.cfg.StructuralSettle, func() {
		c.FetchFriends(context.Background())
	})
}

func (c *Coordinator) scheduleDMRefetch(userID string) {
	c.after(c.cfg.MessageSettle, func() {
		c.FetchDM(context.Background(), userID)
	})
}

// UpdateProfile writes profile changes for the bound identity.
func (c *Coordinator) UpdateProfile(ctx context.Context, p models.Profile) bool {
	addr := c.Address()
	if addr == "" {
		return false
	}
	p.UserID = addr
	if err := c.remote.UpdateProfile(ctx, &p); err != nil {
		c.log.Error(fmt.Sprintf("failed to update profile: %v", err))
		return false
	}
	c.scheduleProfileRefetch()
	return true
}

// CreateServer creates a server and joins it. The two writes are
// independent: a created server whose join fails is reported as partial
// success (non-empty id, joined=false) and the cache stays valid but
// incomplete until the caller retries the join.
func (c *Coordinator) CreateServer(ctx context.Context, name, description, iconURL string) (serverID string, joined bool) {
	addr := c.Address()
	if addr == "" {
		return "", false
	}
	srv := &models.Server{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		IconURL:     iconURL,
		OwnerID:     addr,
	}
	if err := c.remote.CreateServer(ctx, srv); err != nil {
		c.log.Error(fmt.Sprintf("failed to create server: %v", err))
		return "", false
	}
	if !c.JoinServer(ctx, srv.ID) {
		return srv.ID, false
	}
	c.scheduleServerRefetch(srv.ID)
	return srv.ID, true
}

// JoinServer joins the bound identity to a server.
func (c *Coordinator) JoinServer(ctx context.Context, serverID string) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.JoinServer(ctx, serverID); err != nil {
		c.log.Error(fmt.Sprintf("failed to join server %s: %v", serverID, err))
		return false
	}
	c.scheduleProfileRefetch()
	return true
}

// LeaveServer removes the bound identity from a server.
func (c *Coordinator) LeaveServer(ctx context.Context, serverID string) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.LeaveServer(ctx, serverID); err != nil {
		c.log.Error(fmt.Sprintf("failed to leave server %s: %v", serverID, err))
		return false
	}
	c.scheduleProfileRefetch()
	return true
}

// UpdateServer writes server metadata changes.
func (c *Coordinator) UpdateServer(ctx context.Context, srv models.Server) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.UpdateServer(ctx, &srv); err != nil {
		c.log.Error(fmt.Sprintf("failed to update server %s: %v", srv.ID, err))
		return false
	}
	c.scheduleServerRefetch(srv.ID)
	return true
}

// CreateChannel creates a channel in a server, positioned after the
// existing channels of its category.
func (c *Coordinator) CreateChannel(ctx context.Context, serverID, name, categoryID string) bool {
	if c.Address() == "" {
		return false
	}
	ch := models.Channel{
		ID:         uuid.New().String(),
		Name:       name,
		CategoryID: categoryID,
		Position:   c.nextChannelPosition(serverID, categoryID),
	}
	if err := c.remote.CreateChannel(ctx, serverID, ch); err != nil {
		c.log.Error(fmt.Sprintf("failed to create channel in %s: %v", serverID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

func (c *Coordinator) nextChannelPosition(serverID, categoryID string) int {
	srv, ok := c.cache.Server(serverID)
	if !ok {
		return 0
	}
	next := 0
	for _, ch := range srv.Channels {
		if ch.CategoryID == categoryID && ch.Position >= next {
			next = ch.Position + 1
		}
	}
	return next
}

// UpdateChannel writes channel changes (rename, recategorize, reposition).
func (c *Coordinator) UpdateChannel(ctx context.Context, serverID string, ch models.Channel) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.UpdateChannel(ctx, serverID, ch); err != nil {
		c.log.Error(fmt.Sprintf("failed to update channel %s: %v", ch.ID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

// DeleteChannel removes a channel.
func (c *Coordinator) DeleteChannel(ctx context.Context, serverID, channelID string) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.DeleteChannel(ctx, serverID, channelID); err != nil {
		c.log.Error(fmt.Sprintf("failed to delete channel %s: %v", channelID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

// CreateCategory creates a category positioned at the end of the server.
func (c *Coordinator) CreateCategory(ctx context.Context, serverID, name string) bool {
	if c.Address() == "" {
		return false
	}
	cat := models.Category{
		ID:   uuid.New().String(),
		Name: name,
	}
	if srv, ok := c.cache.Server(serverID); ok {
		for _, existing := range srv.Categories {
			if existing.Position >= cat.Position {
				cat.Position = existing.Position + 1
			}
		}
	}
	if err := c.remote.CreateCategory(ctx, serverID, cat); err != nil {
		c.log.Error(fmt.Sprintf("failed to create category in %s: %v", serverID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

// UpdateCategory writes category changes.
func (c *Coordinator) UpdateCategory(ctx context.Context, serverID string, cat models.Category) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.UpdateCategory(ctx, serverID, cat); err != nil {
		c.log.Error(fmt.Sprintf("failed to update category %s: %v", cat.ID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

// DeleteCategory removes a category.
func (c *Coordinator) DeleteCategory(ctx context.Context, serverID, categoryID string) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.DeleteCategory(ctx, serverID, categoryID); err != nil {
		c.log.Error(fmt.Sprintf("failed to delete category %s: %v", categoryID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

// CreateRole creates a role.
func (c *Coordinator) CreateRole(ctx context.Context, serverID string, role models.Role) bool {
	if c.Address() == "" {
		return false
	}
	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	if err := c.remote.CreateRole(ctx, serverID, role); err != nil {
		c.log.Error(fmt.Sprintf("failed to create role in %s: %v", serverID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

// UpdateRole writes role changes.
func (c *Coordinator) UpdateRole(ctx context.Context, serverID string, role models.Role) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.UpdateRole(ctx, serverID, role); err != nil {
		c.log.Error(fmt.Sprintf("failed to update role %s: %v", role.ID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

// DeleteRole removes a role.
func (c *Coordinator) DeleteRole(ctx context.Context, serverID, roleID string) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.DeleteRole(ctx, serverID, roleID); err != nil {
		c.log.Error(fmt.Sprintf("failed to delete role %s: %v", roleID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

// MoveRoleAbove repositions a role directly above an anchor role. Order
// mutations carry no optimistic patch: the resulting relative order
// cannot be safely predicted client-side, so only the refetch decides.
func (c *Coordinator) MoveRoleAbove(ctx context.Context, serverID, roleID, anchorID string) bool {
	return c.moveRole(ctx, serverID, roleID, anchorID, 0)
}

// MoveRoleBelow repositions a role directly below an anchor role.
func (c *Coordinator) MoveRoleBelow(ctx context.Context, serverID, roleID, anchorID string) bool {
	return c.moveRole(ctx, serverID, roleID, anchorID, 1)
}

func (c *Coordinator) moveRole(ctx context.Context, serverID, roleID, anchorID string, offset int) bool {
	if c.Address() == "" {
		return false
	}
	srv, ok := c.cache.Server(serverID)
	if !ok {
		return false
	}
	var role *models.Role
	anchorPos := -1
	for i := range srv.Roles {
		switch srv.Roles[i].ID {
		case roleID:
			r := srv.Roles[i]
			role = &r
		case anchorID:
			anchorPos = srv.Roles[i].Position
		}
	}
	if role == nil || anchorPos < 0 {
		return false
	}
	role.Position = anchorPos + offset
	if err := c.remote.UpdateRole(ctx, serverID, *role); err != nil {
		c.log.Error(fmt.Sprintf("failed to move role %s: %v", roleID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

// UpdateMember writes membership changes (nickname, assigned roles).
func (c *Coordinator) UpdateMember(ctx context.Context, serverID string, m models.Member) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.UpdateMember(ctx, serverID, m); err != nil {
		c.log.Error(fmt.Sprintf("failed to update member %s: %v", m.UserID, err))
		return false
	}
	c.scheduleServerRefetch(serverID)
	return true
}

// SendMessage sends a message to a channel. The client mints the id; no
// optimistic insert is made, the settled refetch brings the message in.
func (c *Coordinator) SendMessage(ctx context.Context, serverID, channelID, content, replyTo string) bool {
	addr := c.Address()
	if addr == "" {
		return false
	}
	msg := models.Message{
		ID:        ulid.Make().String(),
		ChannelID: channelID,
		AuthorID:  addr,
		Content:   content,
		Timestamp: time.Now().UTC(),
		ReplyTo:   replyTo,
	}
	if err := c.remote.SendMessage(ctx, serverID, msg); err != nil {
		c.log.Error(fmt.Sprintf("failed to send message to %s/%s: %v", serverID, channelID, err))
		return false
	}
	c.scheduleMessageRefetch(serverID, channelID)
	return true
}

// EditMessage edits a message. On success the cached copy is patched
// immediately (new content, edited flag) so the UI reflects the edit
// before the settled refetch lands.
func (c *Coordinator) EditMessage(ctx context.Context, serverID, channelID, messageID, content string) bool {
	if c.Address() == "" {
		return false
	}
	msg, ok := c.cache.Message(serverID, channelID, messageID)
	if !ok {
		msg = models.Message{ID: messageID, ChannelID: channelID}
	}
	msg.Content = content
	msg.Edited = true
	if err := c.remote.UpdateMessage(ctx, serverID, msg); err != nil {
		c.log.Error(fmt.Sprintf("failed to edit message %s: %v", messageID, err))
		return false
	}
	c.cache.PatchMessage(serverID, channelID, messageID, func(m *models.Message) {
		m.Content = content
		m.Edited = true
	})
	c.scheduleMessageRefetch(serverID, channelID)
	return true
}

// DeleteMessage deletes a message, removing the cached copy immediately.
func (c *Coordinator) DeleteMessage(ctx context.Context, serverID, channelID, messageID string) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.DeleteMessage(ctx, serverID, channelID, messageID); err != nil {
		c.log.Error(fmt.Sprintf("failed to delete message %s: %v", messageID, err))
		return false
	}
	c.cache.RemoveMessage(serverID, channelID, messageID)
	c.scheduleMessageRefetch(serverID, channelID)
	return true
}

// SendFriendRequest sends a friend request to another wallet.
func (c *Coordinator) SendFriendRequest(ctx context.Context, userID string) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.SendFriendRequest(ctx, userID); err != nil {
		c.log.Error(fmt.Sprintf("failed to send friend request to %s: %v", userID, err))
		return false
	}
	c.scheduleFriendsRefetch()
	return true
}

// AcceptFriend accepts a received friend request.
func (c *Coordinator) AcceptFriend(ctx context.Context, userID string) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.AcceptFriend(ctx, userID); err != nil {
		c.log.Error(fmt.Sprintf("failed to accept friend %s: %v", userID, err))
		return false
	}
	c.scheduleFriendsRefetch()
	return true
}

// RemoveFriend removes a friend or withdraws/rejects a pending request.
func (c *Coordinator) RemoveFriend(ctx context.Context, userID string) bool {
	if c.Address() == "" {
		return false
	}
	if err := c.remote.RemoveFriend(ctx, userID); err != nil {
		c.log.Error(fmt.Sprintf("failed to remove friend %s: %v", userID, err))
		return false
	}
	c.scheduleFriendsRefetch()
	return true
}

// SendDM sends a direct message to a counterpart wallet.
func (c *Coordinator) SendDM(ctx context.Context, userID, content string) bool {
	addr := c.Address()
	if addr == "" {
		return false
	}
	msg := models.DMMessage{
		ID:        ulid.Make().String(),
		AuthorID:  addr,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := c.remote.SendDM(ctx, userID, msg); err != nil {
		c.log.Error(fmt.Sprintf("failed to send dm to %s: %v", userID, err))
		return false
	}
	c.scheduleDMRefetch(userID)
	return true
}
