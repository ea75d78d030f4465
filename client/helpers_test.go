package client

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ankushKun/subspace-prod-sub001/internal/models"
	"github.com/tryfix/log"
)

func testLogger() log.Logger {
	return log.Constructor.Log(
		log.WithColors(false),
		log.WithLevel("ERROR"),
		log.WithFilePath(false),
	)
}

func testConfig() Config {
	return Config{
		StructuralSettle:    10 * time.Millisecond,
		MessageSettle:       15 * time.Millisecond,
		LoaderDelay:         time.Millisecond,
		ProfilePollInterval: time.Hour,
		MessagePollInterval: 5 * time.Millisecond,
	}
}

func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func channelKey(serverID, channelID string) string {
	return serverID + "/" + channelID
}

// fakeService is an in-memory Service where writes are immediately
// visible to reads. Per-key failure injection and a gate for holding a
// server fetch open cover the error and collision paths.
type fakeService struct {
	mu sync.Mutex

	profiles map[string]*models.Profile
	servers  map[string]*models.Server
	members  map[string][]models.Member
	messages map[string][]models.Message
	friends  []models.Friend
	dms      map[string][]models.DMMessage

	failServers  map[string]bool
	failJoin     bool
	failMessages bool
	failFriends  bool
	serverGate   chan struct{} // when set, GetServer blocks until closed

	getProfileCalls  map[string]int
	getServerCalls   map[string]int
	listMessageCalls int
	listFriendCalls  int
	listDMCalls      int
}

func newFakeService() *fakeService {
	return &fakeService{
		profiles:        make(map[string]*models.Profile),
		servers:         make(map[string]*models.Server),
		members:         make(map[string][]models.Member),
		messages:        make(map[string][]models.Message),
		dms:             make(map[string][]models.DMMessage),
		failServers:     make(map[string]bool),
		getProfileCalls: make(map[string]int),
		getServerCalls:  make(map[string]int),
	}
}

func (f *fakeService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getProfileCalls[userID]++
	if p, ok := f.profiles[userID]; ok {
		copied := *p
		return &copied, nil
	}
	return &models.Profile{UserID: userID}, nil
}

func (f *fakeService) CreateProfile(ctx context.Context, p *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.UserID] = p
	return nil
}

func (f *fakeService) UpdateProfile(ctx context.Context, p *models.Profile) error {
	return f.CreateProfile(ctx, p)
}

func (f *fakeService) GetServer(ctx context.Context, serverID string) (*models.Server, error) {
	f.mu.Lock()
	gate := f.serverGate
	f.getServerCalls[serverID]++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failServers[serverID] {
		return nil, fmt.Errorf("injected failure for %s", serverID)
	}
	srv, ok := f.servers[serverID]
	if !ok {
		return nil, fmt.Errorf("no such server %s", serverID)
	}
	return copyServer(srv), nil
}

// copyServer deep-copies the slices so later in-place writes to the
// fake's stored server cannot alias into a previously returned copy.
func copyServer(srv *models.Server) *models.Server {
	copied := *srv
	copied.Channels = append([]models.Channel(nil), srv.Channels...)
	copied.Categories = append([]models.Category(nil), srv.Categories...)
	copied.Roles = append([]models.Role(nil), srv.Roles...)
	copied.Members = append([]models.Member(nil), srv.Members...)
	return &copied
}

func (f *fakeService) CreateServer(ctx context.Context, srv *models.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers[srv.ID] = copyServer(srv)
	return nil
}

func (f *fakeService) UpdateServer(ctx context.Context, srv *models.Server) error {
	return f.CreateServer(ctx, srv)
}

func (f *fakeService) JoinServer(ctx context.Context, serverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failJoin {
		return fmt.Errorf("injected join failure")
	}
	return nil
}

func (f *fakeService) LeaveServer(ctx context.Context, serverID string) error {
	return nil
}

func (f *fakeService) ListMembers(ctx context.Context, serverID string) ([]models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Member(nil), f.members[serverID]...), nil
}

func (f *fakeService) UpdateMember(ctx context.Context, serverID string, m models.Member) error {
	return nil
}

func (f *fakeService) CreateChannel(ctx context.Context, serverID string, ch models.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	srv, ok := f.servers[serverID]
	if !ok {
		return fmt.Errorf("no such server %s", serverID)
	}
	srv.Channels = append(srv.Channels, ch)
	return nil
}

func (f *fakeService) UpdateChannel(ctx context.Context, serverID string, ch models.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	srv, ok := f.servers[serverID]
	if !ok {
		return fmt.Errorf("no such server %s", serverID)
	}
	for i := range srv.Channels {
		if srv.Channels[i].ID == ch.ID {
			srv.Channels[i] = ch
		}
	}
	return nil
}

func (f *fakeService) DeleteChannel(ctx context.Context, serverID, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	srv, ok := f.servers[serverID]
	if !ok {
		return fmt.Errorf("no such server %s", serverID)
	}
	channels := srv.Channels[:0]
	for _, ch := range srv.Channels {
		if ch.ID != channelID {
			channels = append(channels, ch)
		}
	}
	srv.Channels = channels
	return nil
}

func (f *fakeService) CreateCategory(ctx context.Context, serverID string, cat models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if srv, ok := f.servers[serverID]; ok {
		srv.Categories = append(srv.Categories, cat)
	}
	return nil
}

func (f *fakeService) UpdateCategory(ctx context.Context, serverID string, cat models.Category) error {
	return nil
}

func (f *fakeService) DeleteCategory(ctx context.Context, serverID, categoryID string) error {
	return nil
}

func (f *fakeService) CreateRole(ctx context.Context, serverID string, role models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if srv, ok := f.servers[serverID]; ok {
		srv.Roles = append(srv.Roles, role)
	}
	return nil
}

func (f *fakeService) UpdateRole(ctx context.Context, serverID string, role models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	srv, ok := f.servers[serverID]
	if !ok {
		return fmt.Errorf("no such server %s", serverID)
	}
	for i := range srv.Roles {
		if srv.Roles[i].ID == role.ID {
			srv.Roles[i] = role
		}
	}
	return nil
}

func (f *fakeService) DeleteRole(ctx context.Context, serverID, roleID string) error {
	return nil
}

func (f *fakeService) ListMessages(ctx context.Context, serverID, channelID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listMessageCalls++
	if f.failMessages {
		return nil, fmt.Errorf("injected message failure")
	}
	return append([]models.Message(nil), f.messages[channelKey(serverID, channelID)]...), nil
}

func (f *fakeService) SendMessage(ctx context.Context, serverID string, msg models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := channelKey(serverID, msg.ChannelID)
	f.messages[key] = append(f.messages[key], msg)
	return nil
}

func (f *fakeService) UpdateMessage(ctx context.Context, serverID string, msg models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := channelKey(serverID, msg.ChannelID)
	for i := range f.messages[key] {
		if f.messages[key][i].ID == msg.ID {
			f.messages[key][i] = msg
		}
	}
	return nil
}

func (f *fakeService) DeleteMessage(ctx context.Context, serverID, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := channelKey(serverID, channelID)
	msgs := f.messages[key][:0]
	for _, msg := range f.messages[key] {
		if msg.ID != messageID {
			msgs = append(msgs, msg)
		}
	}
	f.messages[key] = msgs
	return nil
}

func (f *fakeService) ListFriends(ctx context.Context) ([]models.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFriendCalls++
	if f.failFriends {
		return nil, fmt.Errorf("injected friend failure")
	}
	return append([]models.Friend(nil), f.friends...), nil
}

func (f *fakeService) SendFriendRequest(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.friends = append(f.friends, models.Friend{UserID: userID, Status: models.FriendSent})
	return nil
}

func (f *fakeService) AcceptFriend(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.friends {
		if f.friends[i].UserID == userID {
			f.friends[i].Status = models.FriendAccepted
		}
	}
	return nil
}

func (f *fakeService) RemoveFriend(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	friends := f.friends[:0]
	for _, fr := range f.friends {
		if fr.UserID != userID {
			friends = append(friends, fr)
		}
	}
	f.friends = friends
	return nil
}

func (f *fakeService) ListDMMessages(ctx context.Context, userID string) ([]models.DMMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listDMCalls++
	return append([]models.DMMessage(nil), f.dms[userID]...), nil
}

func (f *fakeService) SendDM(ctx context.Context, userID string, msg models.DMMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[userID] = append(f.dms[userID], msg)
	return nil
}

func (f *fakeService) serverCalls(serverID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getServerCalls[serverID]
}

func (f *fakeService) messageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listMessageCalls
}

func (f *fakeService) profileCalls(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getProfileCalls[userID]
}

func newTestCoordinator(t *testing.T, svc *fakeService) *Coordinator {
	t.Helper()
	return NewCoordinator(testConfig(), svc, nil, testLogger())
}
