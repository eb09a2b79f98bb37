package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/railroad/game/engine"
)

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

func testState(t *testing.T) *engine.StateView {
	t.Helper()
	sim, err := engine.FromText("/-----\\\n|     |\n\\->-<-/")
	if err != nil {
		t.Fatalf("Failed to create simulation: %v", err)
	}
	sim.Tick()
	return sim.View()
}

func startTestServer(hub *Hub) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			sessionID = "default"
		}
		hub.ServeWS(w, r, sessionID)
	}))
}

func waitForClients(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount(sessionID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients in session %s, got %d", want, sessionID, hub.ClientCount(sessionID))
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || cap(hub.broadcast) != broadcastBuffer {
		t.Error("Hub broadcast channel should be buffered")
	}
	if hub.register == nil || hub.unregister == nil || hub.counts == nil {
		t.Error("Hub control channels must be initialised")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if len(hub.sessions["test-session"]) != 1 {
		t.Errorf("Expected 1 client in session, got %d", len(hub.sessions["test-session"]))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Send channel should be closed")
	}

	// A second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub()
	sessionID := "multi-client-session"

	client1 := newTestClient(hub, sessionID)
	client2 := newTestClient(hub, sessionID)
	other := newTestClient(hub, "other-session")

	hub.registerClient(client1)
	hub.registerClient(client2)
	hub.registerClient(other)

	if len(hub.sessions[sessionID]) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", len(hub.sessions[sessionID]))
	}

	hub.unregisterClient(client1)

	if len(hub.sessions[sessionID]) != 1 || !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
	if len(hub.sessions["other-session"]) != 1 {
		t.Error("Other sessions must not be affected")
	}
}

func TestHubBroadcastState(t *testing.T) {
	hub := NewHub()
	sessionID := "broadcast-test"

	client := newTestClient(hub, sessionID)
	bystander := newTestClient(hub, "elsewhere")
	hub.registerClient(client)
	hub.registerClient(bystander)

	hub.BroadcastState(sessionID, testState(t))

	// Broadcasts are queued for the Run goroutine
	if len(client.send) != 0 {
		t.Fatal("BroadcastState must not write to clients directly")
	}
	hub.broadcastMessage(<-hub.broadcast)

	select {
	case data := <-client.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.SessionID != sessionID {
			t.Errorf("Expected sessionID %s, got %s", sessionID, message.SessionID)
		}
		if message.Event != EventState {
			t.Errorf("Expected event %s, got %s", EventState, message.Event)
		}
		if message.State == nil || message.State.Tick != 1 || len(message.State.Crashed) != 1 {
			t.Errorf("State not correctly transmitted: %+v", message.State)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No message received within timeout")
	}

	if len(bystander.send) != 0 {
		t.Error("Clients of other sessions must not receive the broadcast")
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub()

	hub.BroadcastEvent("event-test", EventCrash, "test-data")

	select {
	case message := <-hub.broadcast:
		if message.SessionID != "event-test" {
			t.Errorf("Expected sessionID 'event-test', got %s", message.SessionID)
		}
		if message.Event != EventCrash {
			t.Errorf("Expected event %s, got %s", EventCrash, message.Event)
		}
		if message.Data != "test-data" {
			t.Errorf("Expected data 'test-data', got %v", message.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No broadcast message received within timeout")
	}
}

func TestHubBroadcastDropsWhenQueueFull(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.BroadcastEvent("full", EventState, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcasting must not block without a running hub")
	}
	if len(hub.broadcast) != broadcastBuffer {
		t.Errorf("Expected a full queue, got %d", len(hub.broadcast))
	}
}

func TestHubSlowClientDropped(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "slow", Event: EventState})

	if _, exists := hub.sessions["slow"]; exists {
		t.Error("Client with a blocked send channel should be unregistered")
	}
}

func TestWebSocketUpgrade(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := startTestServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=ws-test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}

	waitForClients(t, hub, "ws-test", 1)

	conn.Close()

	waitForClients(t, hub, "ws-test", 0)
}

func TestWebSocketMessageReceive(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := startTestServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=msg-test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, "msg-test", 1)

	hub.BroadcastState("msg-test", testState(t))
	hub.BroadcastEvent("msg-test", EventDone, map[string]int{"ticks": 1})

	conn.SetReadDeadline(time.Now().Add(time.Second))

	var message Message
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	if message.SessionID != "msg-test" || message.Event != EventState {
		t.Errorf("Unexpected first message: %+v", message)
	}
	if message.State == nil || message.State.Snapshot[2] != "\\--X--/" {
		t.Errorf("Snapshot not correctly received: %+v", message.State)
	}

	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("Failed to read second WebSocket message: %v", err)
	}
	if message.Event != EventDone {
		t.Errorf("Expected %s, got %s", EventDone, message.Event)
	}
}

func TestWebSocketSessionIDIgnoresCase(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := startTestServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=AB12"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, "ab12", 1)
	if hub.ClientCount("AB12") != 1 {
		t.Error("ClientCount should ignore case")
	}

	hub.BroadcastState("ab12", testState(t))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var message Message
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("Watcher on AB12 missed a broadcast for ab12: %v", err)
	}
	if message.SessionID != "ab12" || message.Event != EventState {
		t.Errorf("Unexpected message: %+v", message)
	}
}
