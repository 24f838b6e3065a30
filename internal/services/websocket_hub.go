package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/themeorama/server/internal/observability"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	ID         string
	Topics     map[string]bool
	Conn       *websocket.Conn
	Send       chan []byte
	hub        *WebSocketHub
	mu         sync.Mutex
	closedOnce sync.Once
	closed     bool // guarded by hub.mu; set once Send is closed
}

// WebSocketHub fans theme change notifications out to connected clients
type WebSocketHub struct {
	clients    map[*WSClient]bool
	topics     map[string]map[*WSClient]bool // topic -> clients
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan *broadcastMsg
	done       chan struct{}
	logger     *observability.Logger
	mu         sync.RWMutex
}

type broadcastMsg struct {
	topics  []string // empty means every client
	message []byte
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(logger *observability.Logger) *WebSocketHub {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &WebSocketHub{
		clients:    make(map[*WSClient]bool),
		topics:     make(map[string]map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan *broadcastMsg, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.closed = true
				close(client.Send)
			}
			h.topics = make(map[string]map[*WSClient]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.WithField("client_id", client.ID).Debugf("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for topic := range client.Topics {
					if topicClients, ok := h.topics[topic]; ok {
						delete(topicClients, client)
						if len(topicClients) == 0 {
							delete(h.topics, topic)
						}
					}
				}
				client.closed = true
				close(client.Send)
			}
			h.mu.Unlock()
			h.logger.WithField("client_id", client.ID).Debugf("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := make(map[*WSClient]bool)
			if len(msg.topics) == 0 {
				for client := range h.clients {
					targets[client] = true
				}
			}
			for _, topic := range msg.topics {
				for client := range h.topics[topic] {
					targets[client] = true
				}
			}

			for client := range targets {
				select {
				case client.Send <- msg.message:
				default:
					// Client buffer full, drop the connection
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub. It is a no-op once the hub has stopped.
func (h *WebSocketHub) Register(client *WSClient) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *WebSocketHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe adds a client to a topic
func (h *WebSocketHub) Subscribe(client *WSClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}
	client.Topics[topic] = true
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*WSClient]bool)
	}
	h.topics[topic][client] = true
	h.logger.WithField("client_id", client.ID).WithField("topic", topic).Debugf("Client subscribed")
}

// Unsubscribe removes a client from a topic
func (h *WebSocketHub) Unsubscribe(client *WSClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.Topics, topic)
	if topicClients, ok := h.topics[topic]; ok {
		delete(topicClients, client)
		if len(topicClients) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish sends a message to the subscribers of any of the topics, each client at most once
func (h *WebSocketHub) Publish(msg WSMessage, topics ...string) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("Error marshaling WebSocket message")
		return
	}

	select {
	case h.broadcast <- &broadcastMsg{topics: topics, message: data}:
	default:
		h.logger.WithField("type", msg.Type).Warn("WebSocket broadcast queue full, dropping message")
	}
}

// Reply queues a message for a single client. It reports false when the client is gone
// or its send buffer is full.
func (h *WebSocketHub) Reply(client *WSClient, msg WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client.closed {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

// BroadcastAll sends a message to all connected clients
func (h *WebSocketHub) BroadcastAll(msg WSMessage) {
	h.Publish(msg)
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetTopicSubscriberCount returns the number of subscribers for a topic
func (h *WebSocketHub) GetTopicSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.topics[topic]; ok {
		return len(clients)
	}
	return 0
}

// NewClient creates a new WebSocket client connected to this hub
func (h *WebSocketHub) NewClient(id string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:     id,
		Topics: make(map[string]bool),
		Conn:   conn,
		Send:   make(chan []byte, 256),
		hub:    h,
	}
}

// Close closes the client connection
func (c *WSClient) Close() {
	c.closedOnce.Do(func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	})
}

// WritePump pumps messages from the hub to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.mu.Lock()
			err := c.Conn.WriteMessage(websocket.TextMessage, message)
			c.mu.Unlock()

			if err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump pumps messages from the websocket connection to onMessage
func (c *WSClient) ReadPump(onMessage func(client *WSClient, messageType int, data []byte)) {
	defer c.Close()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithField("client_id", c.ID).WithError(err).Warn("WebSocket read error")
			}
			break
		}

		if onMessage != nil {
			onMessage(c, messageType, message)
		}
	}
}

// Message types
const (
	WSTypeThemeUpdated   = "theme_updated"
	WSTypeThemeDeleted   = "theme_deleted"
	WSTypeThemesReloaded = "themes_reloaded"
	WSTypeError          = "error"
	WSTypeSubscribe      = "subscribe"
	WSTypeUnsubscribe    = "unsubscribe"
	WSTypePing           = "ping"
	WSTypePong           = "pong"
)

// TopicThemes receives every catalogue change. Per-theme topics are ThemeTopic(name).
const TopicThemes = "themes"

// ThemeTopic returns the topic that receives changes to one theme
func ThemeTopic(name string) string {
	return "theme:" + name
}

// ThemeChangedPayload is sent when a theme is imported, replaced or deleted
type ThemeChangedPayload struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	IsUserTheme bool   `json:"isUserTheme"`
}

// ThemesReloadedPayload is sent after the catalogue is rebuilt
type ThemesReloadedPayload struct {
	Count  int      `json:"count"`
	Themes []string `json:"themes"`
	Errors []string `json:"errors,omitempty"`
}
