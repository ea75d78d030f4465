package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ankushKun/subspace-prod-sub001/internal/models"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/tryfix/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// uiClient is one connected UI socket with its own buffered send queue,
// so a stalled client only ever blocks itself.
type uiClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Handler exposes the coordinator to a local UI over HTTP, plus a push
// websocket for cache-update events. Read endpoints serve from the cache
// (fetching on miss); action endpoints run the mutation pipeline.
type Handler struct {
	coord     *Coordinator
	log       log.Logger
	uiClients map[*uiClient]bool
	uiMu      sync.Mutex
	broadcast chan []byte
}

// NewHandler creates the local API handler and hooks coordinator events
// into the UI push socket.
func NewHandler(coord *Coordinator, logger log.Logger) *Handler {
	h := &Handler{
		coord:     coord,
		log:       logger,
		uiClients: make(map[*uiClient]bool),
		broadcast: make(chan []byte, 256),
	}

	coord.SetIdentityHandler(func(address string) {
		h.broadcastToUI(mustMarshal(map[string]interface{}{
			"type":    "identity",
			"address": address,
		}))
	})
	coord.SetServerUpdateHandler(func(serverID string) {
		h.broadcastToUI(mustMarshal(map[string]interface{}{
			"type":      "server_update",
			"server_id": serverID,
		}))
	})

	go h.runBroadcast()
	return h
}

// Register mounts all routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/ws", h.handleWebSocket)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/profile", h.handleOwnProfile).Methods(http.MethodGet, http.MethodPut)
	api.HandleFunc("/profiles/{id}", h.handleProfile).Methods(http.MethodGet)

	api.HandleFunc("/servers", h.handleServers).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/servers/{id}", h.handleServer).Methods(http.MethodGet)
	api.HandleFunc("/servers/{id}/join", h.action(func(r *http.Request) bool {
		return h.coord.JoinServer(r.Context(), mux.Vars(r)["id"])
	})).Methods(http.MethodPost)
	api.HandleFunc("/servers/{id}/leave", h.action(func(r *http.Request) bool {
		return h.coord.LeaveServer(r.Context(), mux.Vars(r)["id"])
	})).Methods(http.MethodPost)
	api.HandleFunc("/servers/{id}/members", h.handleMembers).Methods(http.MethodGet)

	api.HandleFunc("/servers/{id}/channels", h.handleCreateChannel).Methods(http.MethodPost)
	api.HandleFunc("/servers/{id}/channels/{channel}", h.handleChannel).Methods(http.MethodPut, http.MethodDelete)
	api.HandleFunc("/servers/{id}/categories", h.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/servers/{id}/categories/{category}", h.handleCategory).Methods(http.MethodPut, http.MethodDelete)
	api.HandleFunc("/servers/{id}/roles", h.handleCreateRole).Methods(http.MethodPost)
	api.HandleFunc("/servers/{id}/roles/{role}", h.handleRole).Methods(http.MethodPut, http.MethodDelete)

	api.HandleFunc("/servers/{id}/channels/{channel}/messages", h.handleMessages).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/servers/{id}/channels/{channel}/messages/{message}", h.handleMessage).Methods(http.MethodPut, http.MethodDelete)

	api.HandleFunc("/friends", h.handleFriends).Methods(http.MethodGet)
	api.HandleFunc("/friends/{id}", h.handleFriend).Methods(http.MethodPost, http.MethodPut, http.MethodDelete)

	api.HandleFunc("/dms/{id}", h.handleDM).Methods(http.MethodGet, http.MethodPost)

	api.HandleFunc("/ui-state", h.handleUIState).Methods(http.MethodGet, http.MethodPut)
}

func (h *Handler) runBroadcast() {
	for data := range h.broadcast {
		h.uiMu.Lock()
		for client := range h.uiClients {
			select {
			case client.send <- data:
			default:
				// Client buffer full, disconnect
				delete(h.uiClients, client)
				close(client.send)
			}
		}
		h.uiMu.Unlock()
	}
}

func (h *Handler) broadcastToUI(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full
	}
}

func mustMarshal(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error(fmt.Sprintf("websocket upgrade failed: %v", err))
		return
	}

	client := &uiClient{conn: conn, send: make(chan []byte, 64)}
	h.uiMu.Lock()
	h.uiClients[client] = true
	h.uiMu.Unlock()

	go h.writePump(client)
	go func() {
		defer func() {
			h.dropUIClient(client)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Handler) writePump(client *uiClient) {
	defer client.conn.Close()
	for message := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.dropUIClient(client)
			return
		}
	}
	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *Handler) dropUIClient(client *uiClient) {
	h.uiMu.Lock()
	if _, ok := h.uiClients[client]; ok {
		delete(h.uiClients, client)
		close(client.send)
	}
	h.uiMu.Unlock()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// action wraps a boolean mutation as an endpoint: 204 on success, 502 on
// a swallowed remote failure, 401 when no identity is bound.
func (h *Handler) action(fn func(r *http.Request) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.coord.Address() == "" {
			http.Error(w, "no wallet bound", http.StatusUnauthorized)
			return
		}
		if !fn(r) {
			http.Error(w, "remote write failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) handleOwnProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p := h.coord.Cache().OwnProfile()
		if p == nil {
			http.Error(w, "no profile", http.StatusNotFound)
			return
		}
		writeJSON(w, p)
	case http.MethodPut:
		var p models.Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		h.action(func(r *http.Request) bool {
			return h.coord.UpdateProfile(r.Context(), p)
		})(w, r)
	}
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	p := h.coord.FetchProfile(r.Context(), mux.Vars(r)["id"], false)
	if p == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) handleServers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.coord.Cache().Servers())
	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			IconURL     string `json:"icon_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		serverID, joined := h.coord.CreateServer(r.Context(), req.Name, req.Description, req.IconURL)
		if serverID == "" {
			http.Error(w, "remote write failed", http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]interface{}{"server_id": serverID, "joined": joined})
	}
}

func (h *Handler) handleServer(w http.ResponseWriter, r *http.Request) {
	srv := h.coord.FetchServer(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("refresh") == "true")
	if srv == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, srv)
}

func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.coord.FetchMembers(r.Context(), mux.Vars(r)["id"]))
}

func (h *Handler) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		CategoryID string `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	h.action(func(r *http.Request) bool {
		return h.coord.CreateChannel(r.Context(), mux.Vars(r)["id"], req.Name, req.CategoryID)
	})(w, r)
}

func (h *Handler) handleChannel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	switch r.Method {
	case http.MethodPut:
		var ch models.Channel
		if err := json.NewDecoder(r.Body).Decode(&ch); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		ch.ID = vars["channel"]
		h.action(func(r *http.Request) bool {
			return h.coord.UpdateChannel(r.Context(), vars["id"], ch)
		})(w, r)
	case http.MethodDelete:
		h.action(func(r *http.Request) bool {
			return h.coord.DeleteChannel(r.Context(), vars["id"], vars["channel"])
		})(w, r)
	}
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	h.action(func(r *http.Request) bool {
		return h.coord.CreateCategory(r.Context(), mux.Vars(r)["id"], req.Name)
	})(w, r)
}

func (h *Handler) handleCategory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	switch r.Method {
	case http.MethodPut:
		var cat models.Category
		if err := json.NewDecoder(r.Body).Decode(&cat); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		cat.ID = vars["category"]
		h.action(func(r *http.Request) bool {
			return h.coord.UpdateCategory(r.Context(), vars["id"], cat)
		})(w, r)
	case http.MethodDelete:
		h.action(func(r *http.Request) bool {
			return h.coord.DeleteCategory(r.Context(), vars["id"], vars["category"])
		})(w, r)
	}
}

func (h *Handler) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var role models.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	h.action(func(r *http.Request) bool {
		return h.coord.CreateRole(r.Context(), mux.Vars(r)["id"], role)
	})(w, r)
}

func (h *Handler) handleRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	switch r.Method {
	case http.MethodPut:
		var req struct {
			models.Role
			MoveAbove string `json:"move_above,omitempty"`
			MoveBelow string `json:"move_below,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		req.Role.ID = vars["role"]
		h.action(func(r *http.Request) bool {
			switch {
			case req.MoveAbove != "":
				return h.coord.MoveRoleAbove(r.Context(), vars["id"], vars["role"], req.MoveAbove)
			case req.MoveBelow != "":
				return h.coord.MoveRoleBelow(r.Context(), vars["id"], vars["role"], req.MoveBelow)
			default:
				return h.coord.UpdateRole(r.Context(), vars["id"], req.Role)
			}
		})(w, r)
	case http.MethodDelete:
		h.action(func(r *http.Request) bool {
			return h.coord.DeleteRole(r.Context(), vars["id"], vars["role"])
		})(w, r)
	}
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.coord.FetchMessages(r.Context(), vars["id"], vars["channel"]))
	case http.MethodPost:
		var req struct {
			Content string `json:"content"`
			ReplyTo string `json:"reply_to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		h.action(func(r *http.Request) bool {
			return h.coord.SendMessage(r.Context(), vars["id"], vars["channel"], req.Content, req.ReplyTo)
		})(w, r)
	}
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		h.action(func(r *http.Request) bool {
			return h.coord.EditMessage(r.Context(), vars["id"], vars["channel"], vars["message"], req.Content)
		})(w, r)
	case http.MethodDelete:
		h.action(func(r *http.Request) bool {
			return h.coord.DeleteMessage(r.Context(), vars["id"], vars["channel"], vars["message"])
		})(w, r)
	}
}

func (h *Handler) handleFriends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.coord.FetchFriends(r.Context()))
}

func (h *Handler) handleFriend(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	h.action(func(r *http.Request) bool {
		switch r.Method {
		case http.MethodPost:
			return h.coord.SendFriendRequest(r.Context(), userID)
		case http.MethodPut:
			return h.coord.AcceptFriend(r.Context(), userID)
		default:
			return h.coord.RemoveFriend(r.Context(), userID)
		}
	})(w, r)
}

func (h *Handler) handleDM(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	switch r.Method {
	case http.MethodGet:
		convo := h.coord.FetchDM(r.Context(), userID)
		if convo == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, convo)
	case http.MethodPost:
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		h.action(func(r *http.Request) bool {
			return h.coord.SendDM(r.Context(), userID, req.Content)
		})(w, r)
	}
}

func (h *Handler) handleUIState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.coord.UIState())
	case http.MethodPut:
		// Pointer fields distinguish "leave as is" (absent) from an
		// explicit clear (empty string), so the UI can deactivate the
		// channel and stop the message poller over this endpoint.
		var req struct {
			ActiveServerID  *string `json:"activeServerId"`
			ActiveChannelID *string `json:"activeChannelId"`
			ActiveFriendID  *string `json:"activeFriendId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if req.ActiveFriendID != nil {
			h.coord.SetActiveFriend(*req.ActiveFriendID)
		}
		switch {
		case req.ActiveChannelID != nil:
			serverID := h.coord.UIState().ActiveServerID
			if req.ActiveServerID != nil {
				serverID = *req.ActiveServerID
			}
			h.coord.SetActiveChannel(serverID, *req.ActiveChannelID)
		case req.ActiveServerID != nil:
			h.coord.SetActiveServer(*req.ActiveServerID)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
