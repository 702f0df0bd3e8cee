package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classifieds/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client represents one WebSocket connection. A user may hold several.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	// Values carries per-connection state owned by the command handler.
	Values sync.Map
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
	}
}

// CommandHandler executes a decoded client command.
type CommandHandler interface {
	HandleCommand(ctx context.Context, client *Client, cmd Command)
}

// Manager manages all active WebSocket connections
type Manager struct {
	clients    map[string]map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex

	handler      CommandHandler
	onDisconnect func(client *Client, lastForUser bool)
	ctx          context.Context
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		ctx:        context.Background(),
	}
}

// SetHandler installs the command handler. Call before Start.
func (m *Manager) SetHandler(h CommandHandler) {
	m.handler = h
}

// OnDisconnect is called after a client is removed.
func (m *Manager) OnDisconnect(fn func(client *Client, lastForUser bool)) {
	m.onDisconnect = fn
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	m.ctx = ctx
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.add(client)
				logger.Debug("WebSocket: client registered for %s", client.UserID)

			case client := <-m.Unregister:
				if removed, last := m.remove(client); removed {
					logger.Debug("WebSocket: client unregistered for %s", client.UserID)
					if m.onDisconnect != nil {
						m.onDisconnect(client, last)
					}
				}

			case <-ctx.Done():
				m.closeAll()
				return
			}
		}
	}()
}

func (m *Manager) add(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	set, ok := m.clients[client.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		m.clients[client.UserID] = set
	}
	set[client] = struct{}{}
}

func (m *Manager) remove(client *Client) (removed bool, lastForUser bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	set, ok := m.clients[client.UserID]
	if !ok {
		return false, false
	}
	if _, ok := set[client]; !ok {
		return false, false
	}

	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(m.clients, client.UserID)
		return true, true
	}
	return true, false
}

func (m *Manager) closeAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for userID, set := range m.clients {
		for client := range set {
			close(client.Send)
		}
		delete(m.clients, userID)
	}
}

// IsConnected reports whether userID has at least one live connection.
func (m *Manager) IsConnected(userID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients[userID]) > 0
}

// SendToUser pushes an event to every connection of userID. Slow clients whose
// buffer is full miss the event rather than blocking the caller.
func (m *Manager) SendToUser(userID string, event Event) {
	payload, err := encodeEvent(event)
	if err != nil {
		logger.Error("WebSocket: failed to encode %s event: %v", event.Type, err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for client := range m.clients[userID] {
		select {
		case client.Send <- payload:
		default:
			logger.Warn("WebSocket: dropping %s event for %s, send buffer full", event.Type, userID)
		}
	}
}

// SendToClient pushes an event to a single connection.
func (m *Manager) SendToClient(client *Client, event Event) {
	payload, err := encodeEvent(event)
	if err != nil {
		logger.Error("WebSocket: failed to encode %s event: %v", event.Type, err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if _, ok := m.clients[client.UserID][client]; !ok {
		return
	}
	select {
	case client.Send <- payload:
	default:
		logger.Warn("WebSocket: dropping %s event for %s, send buffer full", event.Type, client.UserID)
	}
}

func encodeEvent(event Event) ([]byte, error) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(event)
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error for %s: %v", c.UserID, err)
			}
			break
		}

		m.HandleClientMessage(c, message)
	}
}

// WritePump sends messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket: write error for %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
