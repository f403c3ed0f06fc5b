// Package websocket pushes live events to connected users.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kinship/security"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// TokenParser validates the bearer token a client connects with.
type TokenParser interface {
	Parse(token string) (*security.Principal, error)
}

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type delivery struct {
	userID string
	client *Client
	msg    []byte
}

// Manager tracks the open connections of every user. All registry changes
// and sends happen on the Start goroutine.
type Manager struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.Logger
}

type Client struct {
	conn    *websocket.Conn
	userID  string
	send    chan []byte
	manager *Manager
}

func NewManager(log *zap.Logger) *Manager {
	return &Manager{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, sendBuffer),
		done:       make(chan struct{}),
		log:        log.Named("websocket"),
	}
}

// Start runs the hub until ctx is done, then closes every connection.
func (m *Manager) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(m.done)
			m.mu.Lock()
			for _, set := range m.clients {
				for c := range set {
					close(c.send)
				}
			}
			m.clients = make(map[string]map[*Client]bool)
			m.mu.Unlock()
			return

		case c := <-m.register:
			m.mu.Lock()
			if m.clients[c.userID] == nil {
				m.clients[c.userID] = make(map[*Client]bool)
			}
			m.clients[c.userID][c] = true
			m.mu.Unlock()
			m.log.Debug("client registered", zap.String("userId", c.userID))

		case c := <-m.unregister:
			m.mu.Lock()
			m.drop(c)
			m.mu.Unlock()
			m.log.Debug("client unregistered", zap.String("userId", c.userID))

		case d := <-m.deliver:
			m.mu.Lock()
			if d.client != nil {
				if m.clients[d.client.userID][d.client] {
					m.push(d.client, d.msg)
				}
			} else {
				for c := range m.clients[d.userID] {
					m.push(c, d.msg)
				}
			}
			m.mu.Unlock()
		}
	}
}

// push drops a client whose buffer is full. Callers hold mu.
func (m *Manager) push(c *Client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		m.log.Warn("dropping slow client", zap.String("userId", c.userID))
		m.drop(c)
	}
}

func (m *Manager) drop(c *Client) {
	set, ok := m.clients[c.userID]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(m.clients, c.userID)
	}
}

// SendToUser queues an event for every connection of userID. It never
// blocks; events are dropped when the hub is saturated.
func (m *Manager) SendToUser(userID string, event string, payload any) {
	msg, err := json.Marshal(Event{Type: event, Payload: payload})
	if err != nil {
		m.log.Error("marshal event", zap.String("type", event), zap.Error(err))
		return
	}
	select {
	case m.deliver <- delivery{userID: userID, msg: msg}:
	default:
		m.log.Warn("hub saturated, event dropped", zap.String("type", event), zap.String("userId", userID))
	}
}

func (m *Manager) ConnectedUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func bearer(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// Handler authenticates the connection with the token query parameter or
// the Authorization header and attaches it to the user's connection set.
func (m *Manager) Handler(tokens TokenParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}
		principal, err := tokens.Parse(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			m.log.Warn("upgrade failed", zap.Error(err))
			return
		}

		c := &Client{
			conn:    conn,
			userID:  principal.ID.Hex(),
			send:    make(chan []byte, sendBuffer),
			manager: m,
		}

		welcome, _ := json.Marshal(Event{Type: "connected", Payload: map[string]any{
			"userId": c.userID,
			"time":   time.Now().Unix(),
		}})
		c.send <- welcome
		select {
		case m.register <- c:
		case <-m.done:
			conn.Close()
			return
		}

		go c.writePump()
		go c.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.log.Debug("read error", zap.String("userId", c.userID), zap.Error(err))
			}
			return
		}

		var in Event
		if err := json.Unmarshal(message, &in); err != nil {
			continue
		}
		if in.Type == "ping" {
			pong, _ := json.Marshal(Event{Type: "pong", Payload: map[string]any{"time": time.Now().Unix()}})
			select {
			case c.manager.deliver <- delivery{client: c, msg: pong}:
			case <-c.manager.done:
				return
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
