package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event is one Server-Sent Event.
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client is a connected dock screen.
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub fans events out to connected clients. Slow clients miss events rather
// than block publishers.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("SSE client registered", zap.String("client_id", client.ID), zap.String("user_id", client.UserID), zap.Int("total", len(h.clients)))
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("SSE client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("SSE client buffer full, skipping event", zap.String("client_id", client.ID), zap.String("event", event.EventType))
		}
	}
}

// Publish JSON-encodes payload and broadcasts it under eventType.
func (h *Hub) Publish(eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("SSE payload encode failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	h.Broadcast(Event{EventType: eventType, Data: string(data)})
}
