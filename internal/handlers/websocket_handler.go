package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/themeorama/server/internal/observability"
	"github.com/themeorama/server/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Public, read-only event stream
		return true
	},
}

// WebSocketHandler streams theme change notifications
type WebSocketHandler struct {
	hub    *services.WebSocketHub
	logger *observability.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub, logger *observability.Logger) *WebSocketHandler {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}
}

// HandleConnection upgrades HTTP to WebSocket. Clients start subscribed to the catalogue topic;
// ?theme=a,b also subscribes to individual themes.
// GET /ws
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := h.hub.NewClient(uuid.New().String(), conn)
	h.hub.Register(client)
	h.hub.Subscribe(client, services.TopicThemes)
	for _, name := range strings.Split(r.URL.Query().Get("theme"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			h.hub.Subscribe(client, services.ThemeTopic(name))
		}
	}

	go client.WritePump()

	// Blocks until the connection closes
	client.ReadPump(h.handleMessage)
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg services.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.hub.Reply(client, services.WSMessage{Type: services.WSTypeError, Payload: "invalid message"})
		return
	}

	switch msg.Type {
	case services.WSTypeSubscribe:
		if topic := topicFromPayload(msg.Payload); topic != "" {
			h.hub.Subscribe(client, topic)
		}

	case services.WSTypeUnsubscribe:
		if topic := topicFromPayload(msg.Payload); topic != "" {
			h.hub.Unsubscribe(client, topic)
		}

	case services.WSTypePing:
		h.hub.Reply(client, services.WSMessage{Type: services.WSTypePong})

	default:
		h.logger.WithField("client_id", client.ID).WithField("type", msg.Type).Debugf("Unknown WebSocket message type")
	}
}

// topicFromPayload accepts "topic" or {"topic": "..."}; {"theme": "name"} maps to that theme's topic
func topicFromPayload(payload interface{}) string {
	switch p := payload.(type) {
	case string:
		return p
	case map[string]interface{}:
		if topic, ok := p["topic"].(string); ok {
			return topic
		}
		if theme, ok := p["theme"].(string); ok && theme != "" {
			return services.ThemeTopic(theme)
		}
	}
	return ""
}
