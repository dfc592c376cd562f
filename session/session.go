package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"tactical-grid/config"
	"tactical-grid/game"
	"tactical-grid/store"
)

// Server message types.
const (
	MsgStateUpdate = "state_update"
	MsgError       = "error"
)

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type Session struct {
	ID      string
	Clients map[*websocket.Conn]bool
	State   game.State
}

type Manager struct {
	sessions    map[string]*Session
	mu          sync.Mutex
	maxSessions int
	maxUsers    int
	log         *slog.Logger

	store    store.Snapshotter
	interval time.Duration
	stop     chan struct{}
	stopped  chan struct{}
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: cfg.MaxSessions,
		maxUsers:    cfg.MaxUsersPerSession,
		log:         slog.Default(),
	}
}

func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
}

func (m *Manager) newSession(id string, state game.State) *Session {
	s := &Session{
		ID:      id,
		Clients: make(map[*websocket.Conn]bool),
		State:   state,
	}
	m.sessions[id] = s
	return s
}

// lookup returns the session with the given id. The caller must hold m.mu.
func (m *Manager) lookup(id string) (*Session, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) CreateSession(c *fiber.Ctx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "maximum number of sessions reached",
		})
	}

	id := uuid.NewString()
	m.newSession(id, game.NewState())

	m.log.Info("session created", "session", id)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"sessionId": id,
	})
}

func (m *Manager) GetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	m.mu.Lock()
	session, ok := m.lookup(id)
	var data []byte
	var err error
	if ok {
		data, err = json.Marshal(session.State)
	}
	m.mu.Unlock()

	if !ok {
		return sessionNotFound(c)
	}
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", id, err)
	}

	return c.JSON(fiber.Map{
		"sessionId": id,
		"state":     json.RawMessage(data),
	})
}

// DeleteSession ends a session, disconnects its clients and drops its snapshot.
func (m *Manager) DeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	m.mu.Lock()
	session, ok := m.lookup(id)
	if ok {
		delete(m.sessions, id)
		for client := range session.Clients {
			client.Close()
		}
	}
	st := m.store
	m.mu.Unlock()

	if !ok {
		return sessionNotFound(c)
	}
	if st != nil {
		if err := st.DeleteSnapshot(c.UserContext(), id); err != nil {
			m.log.Warn("failed to delete snapshot", "session", id, "error", err)
		}
	}
	m.log.Info("session deleted", "session", id)
	return c.SendStatus(fiber.StatusNoContent)
}

// MovementOptions answers where a creature can walk in a scene.
func (m *Manager) MovementOptions(c *fiber.Ctx) error {
	sceneID, creatureID := c.Params("scene"), c.Params("creature")
	return m.options(c, func(s game.State) ([]game.TileCoordinate, error) {
		return s.MovementOptions(sceneID, creatureID)
	})
}

// CombatMovementOptions answers where the combat actor can still move this turn.
func (m *Manager) CombatMovementOptions(c *fiber.Ctx) error {
	return m.options(c, game.State.CombatMovementOptions)
}

func (m *Manager) options(c *fiber.Ctx, query func(game.State) ([]game.TileCoordinate, error)) error {
	m.mu.Lock()
	session, ok := m.lookup(c.Params("id"))
	var opts []game.TileCoordinate
	var err error
	if ok {
		opts, err = query(session.State)
	}
	m.mu.Unlock()

	if !ok {
		return sessionNotFound(c)
	}
	switch {
	case errors.Is(err, game.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, game.ErrNoCombat):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return err
	}
	if opts == nil {
		opts = []game.TileCoordinate{}
	}
	return c.JSON(opts)
}

func sessionNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "session not found",
	})
}

// WS handler
func (m *Manager) HandleWS(c *websocket.Conn) {
	sessionID := c.Params("sessionId")
	m.mu.Lock()
	session, ok := m.lookup(sessionID)
	if !ok {
		m.mu.Unlock()
		c.Close()
		return
	}
	if m.maxUsers > 0 && len(session.Clients) >= m.maxUsers {
		m.mu.Unlock()
		m.sendMessage(c, ServerMessage{Type: MsgError, Payload: "session is full"})
		c.Close()
		return
	}

	session.Clients[c] = true
	m.log.Info("client joined session", "session", sessionID, "connected", len(session.Clients))

	// Late joiners get the current state straight away.
	m.sendMessage(c, ServerMessage{Type: MsgStateUpdate, Payload: session.State})
	m.mu.Unlock()

	defer func() {
		c.Close()
		m.mu.Lock()
		delete(session.Clients, c)
		m.mu.Unlock()
	}()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			m.log.Debug("websocket read ended", "session", sessionID, "error", err)
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(msg, &clientMsg); err != nil {
			m.log.Warn("invalid message", "session", sessionID, "error", err)
			continue
		}

		m.mu.Lock()
		if err := processCommand(clientMsg, &session.State); err != nil {
			m.log.Warn("command rejected", "session", sessionID, "type", clientMsg.Type, "error", err)
			m.sendMessage(c, ServerMessage{Type: MsgError, Payload: err.Error()})
		} else {
			m.broadcastState(session)
		}
		m.mu.Unlock()
	}
}

// processCommand applies one client command. Rejected commands leave state untouched.
func processCommand(msg ClientMessage, state *game.State) error {
	cmd, err := game.DecodeCommand(msg.Type, msg.Payload)
	if err != nil {
		return err
	}
	return state.Apply(cmd)
}

// broadcastState sends the session's state to every client. The caller must hold m.mu.
func (m *Manager) broadcastState(session *Session) {
	data, err := json.Marshal(ServerMessage{Type: MsgStateUpdate, Payload: session.State})
	if err != nil {
		m.log.Error("failed to marshal state", "session", session.ID, "error", err)
		return
	}
	for client := range session.Clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			m.log.Debug("broadcast write failed", "session", session.ID, "error", err)
		}
	}
}

func (m *Manager) sendMessage(c *websocket.Conn, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Error("failed to marshal message", "type", msg.Type, "error", err)
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		m.log.Debug("write failed", "type", msg.Type, "error", err)
	}
}
