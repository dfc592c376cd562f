// Package client talks to a session server: a websocket for commands and state updates,
// and plain HTTP for movement queries.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"tactical-grid/game"
)

// Handlers receive what the server pushes. They run on the connection's read goroutine.
type Handlers struct {
	State func(game.State)
	Error func(msg string)
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Conn is a joined session. It implements game.Dispatcher.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	handlers  Handlers
	log       *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

var _ game.Dispatcher = (*Conn)(nil)

// Dial joins sessionID on the server at base, e.g. "http://localhost:3000".
func Dial(ctx context.Context, base, sessionID string, h Handlers) (*Conn, error) {
	u, err := wsURL(base, sessionID)
	if err != nil {
		return nil, err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	c := &Conn{
		ws:       ws,
		handlers: h,
		log:      slog.Default().With("session", sessionID),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func wsURL(base, sessionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("server url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/" + url.PathEscape(sessionID)
	return u.String(), nil
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.log.Debug("websocket read ended", "error", err)
			return
		}
		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("invalid server message", "error", err)
			continue
		}
		switch msg.Type {
		case "state_update":
			state, err := game.DecodeState(msg.Payload)
			if err != nil {
				c.log.Warn("invalid state update", "error", err)
				continue
			}
			if c.handlers.State != nil {
				c.handlers.State(state)
			}
		case "error":
			var text string
			if err := json.Unmarshal(msg.Payload, &text); err != nil {
				text = string(msg.Payload)
			}
			c.log.Warn("server rejected command", "error", text)
			if c.handlers.Error != nil {
				c.handlers.Error(text)
			}
		default:
			c.log.Debug("ignoring server message", "type", msg.Type)
		}
	}
}

// Dispatch sends cmd. Failures are logged; the next state update is the only reply.
func (c *Conn) Dispatch(cmd game.Command) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(cmd); err != nil {
		c.log.Warn("failed to send command", "type", cmd.Type, "error", err)
	}
}

// Done is closed once the server connection is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close leaves the session and waits for the read goroutine to exit.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
		<-c.done
	})
	return err
}
