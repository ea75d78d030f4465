package remote

import (
	"context"
	"errors"

	"github.com/ankushKun/subspace-prod-sub001/internal/models"
)

// ErrNotFound is returned when the remote service has no entity for the
// requested key. Callers use errors.Is to distinguish absence from
// transport failure.
var ErrNotFound = errors.New("remote: not found")

// Service is the remote chat service consumed by the cache coordinator.
// The backend is append-only and eventually consistent: a successful write
// is not immediately visible to reads, which is why the coordinator
// refetches after a settle delay instead of trusting write results.
type Service interface {
	// Profiles
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	CreateProfile(ctx context.Context, p *models.Profile) error
	UpdateProfile(ctx context.Context, p *models.Profile) error

	// Servers
	GetServer(ctx context.Context, serverID string) (*models.Server, error)
	CreateServer(ctx context.Context, srv *models.Server) error
	UpdateServer(ctx context.Context, srv *models.Server) error
	JoinServer(ctx context.Context, serverID string) error
	LeaveServer(ctx context.Context, serverID string) error

	// Members
	ListMembers(ctx context.Context, serverID string) ([]models.Member, error)
	UpdateMember(ctx context.Context, serverID string, m models.Member) error

	// Channels and categories
	CreateChannel(ctx context.Context, serverID string, ch models.Channel) error
	UpdateChannel(ctx context.Context, serverID string, ch models.Channel) error
	DeleteChannel(ctx context.Context, serverID, channelID string) error
	CreateCategory(ctx context.Context, serverID string, cat models.Category) error
	UpdateCategory(ctx context.Context, serverID string, cat models.Category) error
	DeleteCategory(ctx context.Context, serverID, categoryID string) error

	// Roles
	CreateRole(ctx context.Context, serverID string, role models.Role) error
	UpdateRole(ctx context.Context, serverID string, role models.Role) error
	DeleteRole(ctx context.Context, serverID, roleID string) error

	// Messages
	ListMessages(ctx context.Context, serverID, channelID string) ([]models.Message, error)
	SendMessage(ctx context.Context, serverID string, msg models.Message) error
	UpdateMessage(ctx context.Context, serverID string, msg models.Message) error
	DeleteMessage(ctx context.Context, serverID, channelID, messageID string) error

	// Friends
	ListFriends(ctx context.Context) ([]models.Friend, error)
	SendFriendRequest(ctx context.Context, userID string) error
	AcceptFriend(ctx context.Context, userID string) error
	RemoveFriend(ctx context.Context, userID string) error

	// Direct messages
	ListDMMessages(ctx context.Context, userID string) ([]models.DMMessage, error)
	SendDM(ctx context.Context, userID string, msg models.DMMessage) error
}
