// Package websocket pushes dashboard snapshots to browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrHubStopped = errors.New("websocket hub stopped")

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	greeting func() *Message
	logger   *zap.Logger

	mu    sync.RWMutex
	count int
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("component", "websocket-hub")),
	}
}

// SetGreeting installs the message sent to every client right after it
// registers. fn may return nil to skip the greeting. Call before Run.
func (h *Hub) SetGreeting(fn func() *Message) {
	h.greeting = fn
}

// Run serves register, unregister and broadcast requests until ctx ends,
// then closes every client. A hub cannot be restarted.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.setCount()
			h.logger.Debug("WebSocket client registered", zap.String("remote", client.remote))
			h.greet(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Debug("WebSocket client unregistered", zap.String("remote", client.remote))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("WebSocket client send buffer full, removing", zap.String("remote", client.remote))
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) greet(client *Client) {
	if h.greeting == nil {
		return
	}
	msg := h.greeting()
	if msg == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode greeting", zap.Error(err))
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount()
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() {
		for client := range h.clients {
			h.drop(client)
		}
		close(h.done)
		h.logger.Info("WebSocket hub stopped")
	})
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// ClientCount is the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Broadcast encodes the payload and queues it for every client.
func (h *Hub) Broadcast(msgType string, payload any) error {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}
