package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ankushKun/subspace-prod-sub001/internal/models"
	"github.com/ankushKun/subspace-prod-sub001/internal/protocol"
	"github.com/ankushKun/subspace-prod-sub001/internal/wallet"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tryfix/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	authWait   = 15 * time.Second
)

// Gateway is the websocket-backed implementation of Service. One request
// maps to one enveloped frame; responses are routed back by correlation
// id, so calls from any goroutine multiplex over the single connection.
type Gateway struct {
	url     string
	address string
	signer  *wallet.Signer
	dialer  *websocket.Dialer
	log     log.Logger

	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	authed  chan struct{}
	pending map[string]chan callResult
	mu      sync.Mutex
}

type callResult struct {
	value json.RawMessage
	err   error
}

var _ Service = (*Gateway)(nil)

// NewGateway creates a gateway client for the given endpoint. The signer
// may be nil for read-only sessions.
func NewGateway(url, address string, signer *wallet.Signer, logger log.Logger) *Gateway {
	return &Gateway{
		url:     url,
		address: address,
		signer:  signer,
		dialer:  websocket.DefaultDialer,
		log:     logger,
		pending: make(map[string]chan callResult),
	}
}

// Connect dials the gateway, starts the read/write pumps and performs the
// auth handshake.
func (g *Gateway) Connect(ctx context.Context) error {
	conn, _, err := g.dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", g.url, err)
	}

	g.mu.Lock()
	g.conn = conn
	g.send = make(chan []byte, 256)
	g.done = make(chan struct{})
	g.authed = make(chan struct{})
	g.mu.Unlock()

	go g.writePump()
	go g.readPump()

	auth := protocol.AuthMessage{Address: g.address}
	if g.signer != nil {
		token, err := g.signer.SessionToken()
		if err != nil {
			g.Close()
			return err
		}
		auth.Token = token
	}
	env, err := protocol.NewEnvelope(protocol.TypeAuth, "", auth)
	if err != nil {
		g.Close()
		return err
	}
	data, _ := json.Marshal(env)
	g.send <- data

	select {
	case <-g.authed:
		return nil
	case <-g.done:
		return fmt.Errorf("connection closed during auth")
	case <-time.After(authWait):
		g.Close()
		return fmt.Errorf("auth timed out")
	case <-ctx.Done():
		g.Close()
		return ctx.Err()
	}
}

// Close tears down the connection and fails all in-flight calls.
func (g *Gateway) Close() {
	g.mu.Lock()
	conn := g.conn
	done := g.done
	g.conn = nil
	pending := g.pending
	g.pending = make(map[string]chan callResult)
	g.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		default:
			close(done)
		}
	}
	if conn != nil {
		conn.Close()
	}
	for _, ch := range pending {
		ch <- callResult{err: fmt.Errorf("connection closed")}
	}
}

func (g *Gateway) readPump() {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return
	}
	defer g.Close()

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.log.Error(fmt.Sprintf("gateway read error: %v", err))
			}
			return
		}
		g.handleMessage(message)
	}
}

func (g *Gateway) writePump() {
	g.mu.Lock()
	conn := g.conn
	send := g.send
	done := g.done
	g.mu.Unlock()
	if conn == nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (g *Gateway) handleMessage(data []byte) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		g.log.Error(fmt.Sprintf("failed to parse gateway message: %v", err))
		return
	}

	switch env.Type {
	case protocol.TypeAuthOK:
		g.mu.Lock()
		authed := g.authed
		g.mu.Unlock()
		if authed != nil {
			select {
			case <-authed:
			default:
				close(authed)
			}
		}

	case protocol.TypeResult:
		var msg protocol.Result
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			g.log.Error(fmt.Sprintf("failed to parse result: %v", err))
			return
		}
		g.resolve(env.ID, callResult{value: msg.Value})

	case protocol.TypeError:
		var msg protocol.ErrorMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			g.log.Error(fmt.Sprintf("failed to parse error: %v", err))
			return
		}
		if msg.Code == protocol.ErrCodeNotFound {
			g.resolve(env.ID, callResult{err: ErrNotFound})
			return
		}
		g.resolve(env.ID, callResult{err: fmt.Errorf("gateway: [%s] %s", msg.Code, msg.Message)})
	}
}

func (g *Gateway) resolve(id string, res callResult) {
	g.mu.Lock()
	ch, ok := g.pending[id]
	if ok {
		delete(g.pending, id)
	}
	g.mu.Unlock()
	if ok {
		ch <- res
	}
}

// call sends one request and blocks until its result, the connection
// closing or ctx cancellation.
func (g *Gateway) call(ctx context.Context, req protocol.Request) (json.RawMessage, error) {
	id := uuid.New().String()
	env, err := protocol.NewEnvelope(protocol.TypeRequest, id, req)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	ch := make(chan callResult, 1)
	g.mu.Lock()
	if g.conn == nil {
		g.mu.Unlock()
		return nil, fmt.Errorf("not connected")
	}
	g.pending[id] = ch
	send := g.send
	done := g.done
	g.mu.Unlock()

	select {
	case send <- data:
	case <-done:
		g.resolve(id, callResult{})
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		g.resolve(id, callResult{})
		return nil, ctx.Err()
	}

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		g.resolve(id, callResult{})
		return nil, ctx.Err()
	}
}

func (g *Gateway) get(ctx context.Context, kind, key string, scope map[string]string, out interface{}) error {
	raw, err := g.call(ctx, protocol.Request{Op: protocol.OpGet, Kind: kind, Key: key, Scope: scope})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (g *Gateway) list(ctx context.Context, kind string, scope map[string]string, out interface{}) error {
	raw, err := g.call(ctx, protocol.Request{Op: protocol.OpList, Kind: kind, Scope: scope})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (g *Gateway) write(ctx context.Context, op protocol.Op, kind, key string, scope map[string]string, value interface{}) error {
	var raw json.RawMessage
	if value != nil {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		raw = data
	}
	_, err := g.call(ctx, protocol.Request{Op: op, Kind: kind, Key: key, Scope: scope, Value: raw})
	return err
}

func serverScope(serverID string) map[string]string {
	return map[string]string{"server_id": serverID}
}

func channelScope(serverID, channelID string) map[string]string {
	return map[string]string{"server_id": serverID, "channel_id": channelID}
}

// Profiles

func (g *Gateway) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := g.get(ctx, protocol.KindProfile, userID, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *Gateway) CreateProfile(ctx context.Context, p *models.Profile) error {
	return g.write(ctx, protocol.OpCreate, protocol.KindProfile, p.UserID, nil, p)
}

func (g *Gateway) UpdateProfile(ctx context.Context, p *models.Profile) error {
	return g.write(ctx, protocol.OpUpdate, protocol.KindProfile, p.UserID, nil, p)
}

// Servers

func (g *Gateway) GetServer(ctx context.Context, serverID string) (*models.Server, error) {
	var s models.Server
	if err := g.get(ctx, protocol.KindServer, serverID, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (g *Gateway) CreateServer(ctx context.Context, srv *models.Server) error {
	return g.write(ctx, protocol.OpCreate, protocol.KindServer, srv.ID, nil, srv)
}

func (g *Gateway) UpdateServer(ctx context.Context, srv *models.Server) error {
	return g.write(ctx, protocol.OpUpdate, protocol.KindServer, srv.ID, nil, srv)
}

func (g *Gateway) JoinServer(ctx context.Context, serverID string) error {
	return g.write(ctx, protocol.OpCreate, protocol.KindMember, g.address, serverScope(serverID), nil)
}

func (g *Gateway) LeaveServer(ctx context.Context, serverID string) error {
	return g.write(ctx, protocol.OpDelete, protocol.KindMember, g.address, serverScope(serverID), nil)
}

// Members

func (g *Gateway) ListMembers(ctx context.Context, serverID string) ([]models.Member, error) {
	var ms []models.Member
	if err := g.list(ctx, protocol.KindMember, serverScope(serverID), &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

func (g *Gateway) UpdateMember(ctx context.Context, serverID string, m models.Member) error {
	return g.write(ctx, protocol.OpUpdate, protocol.KindMember, m.UserID, serverScope(serverID), m)
}

// Channels and categories

func (g *Gateway) CreateChannel(ctx context.Context, serverID string, ch models.Channel) error {
	return g.write(ctx, protocol.OpCreate, protocol.KindChannel, ch.ID, serverScope(serverID), ch)
}

func (g *Gateway) UpdateChannel(ctx context.Context, serverID string, ch models.Channel) error {
	return g.write(ctx, protocol.OpUpdate, protocol.KindChannel, ch.ID, serverScope(serverID), ch)
}

func (g *Gateway) DeleteChannel(ctx context.Context, serverID, channelID string) error {
	return g.write(ctx, protocol.OpDelete, protocol.KindChannel, channelID, serverScope(serverID), nil)
}

func (g *Gateway) CreateCategory(ctx context.Context, serverID string, cat models.Category) error {
	return g.write(ctx, protocol.OpCreate, protocol.KindCategory, cat.ID, serverScope(serverID), cat)
}

func (g *Gateway) UpdateCategory(ctx context.Context, serverID string, cat models.Category) error {
	return g.write(ctx, protocol.OpUpdate, protocol.KindCategory, cat.ID, serverScope(serverID), cat)
}

func (g *Gateway) DeleteCategory(ctx context.Context, serverID, categoryID string) error {
	return g.write(ctx, protocol.OpDelete, protocol.KindCategory, categoryID, serverScope(serverID), nil)
}

// Roles

func (g *Gateway) CreateRole(ctx context.Context, serverID string, role models.Role) error {
	return g.write(ctx, protocol.OpCreate, protocol.KindRole, role.ID, serverScope(serverID), role)
}

func (g *Gateway) UpdateRole(ctx context.Context, serverID string, role models.Role) error {
	return g.write(ctx, protocol.OpUpdate, protocol.KindRole, role.ID, serverScope(serverID), role)
}

func (g *Gateway) DeleteRole(ctx context.Context, serverID, roleID string) error {
	return g.write(ctx, protocol.OpDelete, protocol.KindRole, roleID, serverScope(serverID), nil)
}

// Messages

func (g *Gateway) ListMessages(ctx context.Context, serverID, channelID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := g.list(ctx, protocol.KindMessage, channelScope(serverID, channelID), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (g *Gateway) SendMessage(ctx context.Context, serverID string, msg models.Message) error {
	return g.write(ctx, protocol.OpCreate, protocol.KindMessage, msg.ID, channelScope(serverID, msg.ChannelID), msg)
}

func (g *Gateway) UpdateMessage(ctx context.Context, serverID string, msg models.Message) error {
	return g.write(ctx, protocol.OpUpdate, protocol.KindMessage, msg.ID, channelScope(serverID, msg.ChannelID), msg)
}

func (g *Gateway) DeleteMessage(ctx context.Context, serverID, channelID, messageID string) error {
	return g.write(ctx, protocol.OpDelete, protocol.KindMessage, messageID, channelScope(serverID, channelID), nil)
}

// Friends

func (g *Gateway) ListFriends(ctx context.Context) ([]models.Friend, error) {
	var fs []models.Friend
	if err := g.list(ctx, protocol.KindFriend, nil, &fs); err != nil {
		return nil, err
	}
	return fs, nil
}

func (g *Gateway) SendFriendRequest(ctx context.Context, userID string) error {
	return g.write(ctx, protocol.OpCreate, protocol.KindFriend, userID, nil, nil)
}

func (g *Gateway) AcceptFriend(ctx context.Context, userID string) error {
	return g.write(ctx, protocol.OpUpdate, protocol.KindFriend, userID, nil, nil)
}

func (g *Gateway) RemoveFriend(ctx context.Context, userID string) error {
	return g.write(ctx, protocol.OpDelete, protocol.KindFriend, userID, nil, nil)
}

// Direct messages

func (g *Gateway) ListDMMessages(ctx context.Context, userID string) ([]models.DMMessage, error) {
	var msgs []models.DMMessage
	if err := g.list(ctx, protocol.KindDM, map[string]string{"user_id": userID}, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (g *Gateway) SendDM(ctx context.Context, userID string, msg models.DMMessage) error {
	return g.write(ctx, protocol.OpCreate, protocol.KindDM, msg.ID, map[string]string{"user_id": userID}, msg)
}
