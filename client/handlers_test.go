package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

func newTestHandler(t *testing.T) (*Handler, *Coordinator, *httptest.Server) {
	t.Helper()
	c := newTestCoordinator(t, newFakeService())
	h := NewHandler(c, testLogger())
	r := mux.NewRouter()
	h.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return h, c, srv
}

func dialUI(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to dial ui socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *Handler) uiClientCount() int {
	h.uiMu.Lock()
	defer h.uiMu.Unlock()
	return len(h.uiClients)
}

func TestStalledUIClientIsEvictedWithoutBlockingOthers(t *testing.T) {
	h, _, srv := newTestHandler(t)

	// The stalled client never reads; the healthy one drains everything.
	dialUI(t, srv)
	healthy := dialUI(t, srv)
	waitFor(t, time.Second, "ui clients to register", func() bool {
		return h.uiClientCount() == 2
	})

	received := make(chan []byte, 1024)
	go func() {
		for {
			_, msg, err := healthy.ReadMessage()
			if err != nil {
				return
			}
			received <- msg
		}
	}()

	// Large events fill the stalled client's socket, then its send queue,
	// which must evict it rather than wedge the broadcast loop.
	big := mustMarshal(map[string]interface{}{
		"type":      "server_update",
		"server_id": strings.Repeat("x", 64*1024),
	})
	for i := 0; i < 300; i++ {
		h.broadcastToUI(big)
		time.Sleep(time.Millisecond)
	}

	waitFor(t, 5*time.Second, "stalled client eviction", func() bool {
		return h.uiClientCount() == 1
	})
	if len(received) == 0 {
		t.Fatal("healthy client received nothing while the stalled client was connected")
	}
}

func TestUIStatePutClearsActiveChannel(t *testing.T) {
	_, c, srv := newTestHandler(t)

	put := func(body string) int {
		req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/ui-state", strings.NewReader(body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNoContent, put(`{"activeServerId":"s1","activeChannelId":"c1"}`))
	state := c.UIState()
	assert.Equal(t, "s1", state.ActiveServerID)
	assert.Equal(t, "c1", state.ActiveChannelID)

	// An explicit empty channel clears it (and stops the message poller);
	// the absent server field leaves the active server alone.
	assert.Equal(t, http.StatusNoContent, put(`{"activeChannelId":""}`))
	state = c.UIState()
	assert.Equal(t, "s1", state.ActiveServerID)
	assert.Equal(t, "", state.ActiveChannelID)

	// Absent channel field leaves the channel alone.
	assert.Equal(t, http.StatusNoContent, put(`{"activeFriendId":"bob"}`))
	state = c.UIState()
	assert.Equal(t, "bob", state.ActiveFriendID)
	assert.Equal(t, "", state.ActiveChannelID)

	assert.Equal(t, http.StatusNoContent, put(`{"activeFriendId":""}`))
	assert.Equal(t, "", c.UIState().ActiveFriendID)
}
