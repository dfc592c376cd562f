package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"

	"tactical-grid/config"
	"tactical-grid/game"
	"tactical-grid/session"
	"tactical-grid/store"
)

type serverMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// startTestServer spins up the Fiber app on a random port and returns its address.
func startTestServer(t *testing.T, cfg config.Config) string {
	t.Helper()

	app := setupApp(session.NewManager(cfg))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		_ = app.Listener(ln)
	}()

	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	return fmt.Sprintf("127.0.0.1:%d", ln.Addr().(*net.TCPAddr).Port)
}

// createTestSession calls POST /session and returns the sessionId.
func createTestSession(t *testing.T, addr string) string {
	t.Helper()

	resp, err := http.Post(fmt.Sprintf("http://%s/session", addr), "application/json", nil)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	sessionID, ok := body["sessionId"]
	if !ok || sessionID == "" {
		t.Fatal("response missing sessionId")
	}
	return sessionID
}

// connectWS dials the WebSocket endpoint for a given session and returns the connection.
func connectWS(t *testing.T, addr, sessionID string) *websocket.Conn {
	t.Helper()

	url := fmt.Sprintf("ws://%s/ws/%s", addr, sessionID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to ws: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}

// readWithTimeout reads a message with a deadline so tests don't hang.
func readWithTimeout(t *testing.T, conn *websocket.Conn, timeout time.Duration) serverMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid server message %q: %v", data, err)
	}
	return msg
}

// readState reads one message and decodes it as a state update.
func readState(t *testing.T, conn *websocket.Conn) game.State {
	t.Helper()
	msg := readWithTimeout(t, conn, 2*time.Second)
	if msg.Type != session.MsgStateUpdate {
		t.Fatalf("expected %q, got %q (%s)", session.MsgStateUpdate, msg.Type, msg.Payload)
	}
	state, err := game.DecodeState(msg.Payload)
	if err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	return state
}

func send(t *testing.T, conn *websocket.Conn, cmd game.Command) {
	t.Helper()
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("failed to send command: %v", err)
	}
}

var goblin = game.Creature{ID: "gob", Name: "Goblin", Speed: 2}

func TestHealth(t *testing.T) {
	addr := startTestServer(t, config.DefaultConfig())

	resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCreateSessionAndJoin(t *testing.T) {
	addr := startTestServer(t, config.DefaultConfig())
	sessionID := createTestSession(t, addr)

	conn := connectWS(t, addr, sessionID)

	state := readState(t, conn)
	if _, ok := state.Scene("common-room"); !ok {
		t.Error("new sessions should start with the common room scene")
	}
}

func TestJoinNonExistentSession(t *testing.T) {
	addr := startTestServer(t, config.DefaultConfig())

	url := fmt.Sprintf("ws://%s/ws/does-not-exist", addr)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		// Connection refused or upgrade failed are both acceptable.
		return
	}
	defer conn.Close()

	// If the connection was accepted, the server should close it immediately.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("expected connection to be closed for non-existent session")
	}
}

func TestBroadcastWithinSession(t *testing.T) {
	addr := startTestServer(t, config.DefaultConfig())
	sessionID := createTestSession(t, addr)

	const numClients = 3
	conns := make([]*websocket.Conn, numClients)
	for i := range conns {
		conns[i] = connectWS(t, addr, sessionID)
		readState(t, conns[i])
	}

	send(t, conns[0], game.AddCreature("common-room", goblin, game.Pt(1, 1, 0), game.AllPlayers))

	// All clients, the sender included, receive the new state.
	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(idx int, c *websocket.Conn) {
			defer wg.Done()
			c.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, data, err := c.ReadMessage()
			if err != nil {
				t.Errorf("client %d: %v", idx, err)
				return
			}
			var msg serverMessage
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != session.MsgStateUpdate {
				t.Errorf("client %d: unexpected message %s", idx, data)
				return
			}
			state, err := game.DecodeState(msg.Payload)
			if err != nil {
				t.Errorf("client %d: %v", idx, err)
				return
			}
			if _, ok := state.Creature("gob"); !ok {
				t.Errorf("client %d: creature missing from broadcast state", idx)
			}
		}(i, conn)
	}
	wg.Wait()
}

func TestBroadcastIsolationBetweenSessions(t *testing.T) {
	addr := startTestServer(t, config.DefaultConfig())

	session1 := createTestSession(t, addr)
	session2 := createTestSession(t, addr)

	conn1 := connectWS(t, addr, session1)
	readState(t, conn1)
	conn2 := connectWS(t, addr, session2)
	readState(t, conn2)

	send(t, conn1, game.AddCreature("common-room", goblin, game.Pt(1, 1, 0), game.AllPlayers))

	state := readState(t, conn1)
	if _, ok := state.Creature("gob"); !ok {
		t.Error("session1 client should see the new creature")
	}

	conn2.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, _, err := conn2.ReadMessage()
	if err == nil {
		t.Error("session2 client should not have received a message from session1")
	}
}

func TestRejectedCommandOnlyReachesSender(t *testing.T) {
	addr := startTestServer(t, config.DefaultConfig())
	sessionID := createTestSession(t, addr)

	conn1 := connectWS(t, addr, sessionID)
	readState(t, conn1)
	conn2 := connectWS(t, addr, sessionID)
	readState(t, conn2)

	send(t, conn1, game.MoveCreature("common-room", "nobody", game.Pt(0, 0, 0)))

	msg := readWithTimeout(t, conn1, 2*time.Second)
	if msg.Type != session.MsgError {
		t.Errorf("expected an error message, got %q", msg.Type)
	}

	conn2.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	if _, _, err := conn2.ReadMessage(); err == nil {
		t.Error("a rejected command should not be broadcast")
	}
}

func TestNewClientReceivesCurrentState(t *testing.T) {
	addr := startTestServer(t, config.DefaultConfig())
	sessionID := createTestSession(t, addr)

	conn1 := connectWS(t, addr, sessionID)
	readState(t, conn1)
	send(t, conn1, game.AddCreature("common-room", goblin, game.Pt(4, 2, 0), game.GMOnly))

	// Read the broadcast back so we know the server has processed it.
	readState(t, conn1)

	conn2 := connectWS(t, addr, sessionID)

	state := readState(t, conn2)
	p, ok := state.Scenes["common-room"].Creatures["gob"]
	if !ok {
		t.Fatal("late joiner should receive the current state")
	}
	if p.Pos != game.Pt(4, 2, 0) || p.Visibility != game.GMOnly {
		t.Errorf("unexpected placement %+v", p)
	}
}

func TestSessionFull(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxUsersPerSession = 1
	addr := startTestServer(t, cfg)
	sessionID := createTestSession(t, addr)

	conn1 := connectWS(t, addr, sessionID)
	readState(t, conn1)

	conn2 := connectWS(t, addr, sessionID)
	msg := readWithTimeout(t, conn2, 2*time.Second)
	if msg.Type != session.MsgError {
		t.Errorf("expected the second client to be refused, got %q", msg.Type)
	}
}

func TestMovementOptionsRoutes(t *testing.T) {
	addr := startTestServer(t, config.DefaultConfig())
	sessionID := createTestSession(t, addr)
	conn := connectWS(t, addr, sessionID)
	readState(t, conn)
	send(t, conn, game.AddCreature("common-room", goblin, game.Pt(0, 0, 0), game.AllPlayers))
	readState(t, conn)

	resp, err := http.Get(fmt.Sprintf("http://%s/session/%s/movement_options/common-room/gob", addr, sessionID))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var opts []game.TileCoordinate
	if err := json.NewDecoder(resp.Body).Decode(&opts); err != nil {
		t.Fatal(err)
	}
	// Speed 2 from the corner of a 12x8 map reaches a 3x3 square less the start.
	if len(opts) != 8 {
		t.Errorf("expected 8 options, got %d: %v", len(opts), opts)
	}

	resp2, err := http.Get(fmt.Sprintf("http://%s/session/%s/combat_movement_options", addr, sessionID))
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 without a combat, got %d", resp2.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	addr := startTestServer(t, config.DefaultConfig())
	sessionID := createTestSession(t, addr)
	conn := connectWS(t, addr, sessionID)
	readState(t, conn)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("http://%s/session/%s", addr, sessionID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("clients of a deleted session should be disconnected")
	}

	get, err := http.Get(fmt.Sprintf("http://%s/session/%s", addr, sessionID))
	if err != nil {
		t.Fatal(err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", get.StatusCode)
	}
}

func TestOpenStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig()
	cfg.SnapshotBackend = config.BackendRedis
	cfg.RedisAddr = mr.Addr()
	s, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("redis backend: %v", err)
	}
	if _, ok := s.(*store.Redis); !ok {
		t.Errorf("expected a redis store, got %T", s)
	}
	s.Close()

	cfg.RedisAddr = ""
	if _, err := openStore(context.Background(), cfg); err == nil {
		t.Error("expected an error for redis without an address")
	}

	cfg.SnapshotBackend = config.BackendPostgres
	cfg.DatabaseURL = ""
	if s, err := openStore(context.Background(), cfg); s != nil || err != nil {
		t.Errorf("expected no store without a database URL, got %v, %v", s, err)
	}

	cfg.SnapshotBackend = "sqlite"
	if _, err := openStore(context.Background(), cfg); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
