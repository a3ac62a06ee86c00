package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/leaderboard-rewards/internal/domain"
)

// Message types
const (
	MessageTypeScoreUpdate        = "score_update"
	MessageTypeRewardsDistributed = "rewards_distributed"
	MessageTypePing               = "ping"
	MessageTypePong               = "pong"
	MessageTypeError              = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ScoreUpdate notifies clients that a player's balance changed
type ScoreUpdate struct {
	PlayerID int64  `json:"player_id"`
	Money    string `json:"money"`
}

// RewardsDistributed notifies clients that a ranking epoch was settled
type RewardsDistributed struct {
	Pool    string `json:"pool"`
	Winners int    `json:"winners"`
}

// Hub maintains the set of active clients and broadcasts ranking
// events to all of them. There is a single global board, so every
// client receives every broadcast.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	mu         sync.RWMutex
	logger     *slog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to every connected client
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastScoreUpdate notifies clients of a scoring event
func (h *Hub) BroadcastScoreUpdate(playerID int64, money float64) {
	h.enqueue(&Message{
		Type: MessageTypeScoreUpdate,
		Data: ScoreUpdate{
			PlayerID: playerID,
			Money:    domain.FormatMoney(money),
		},
		Timestamp: time.Now(),
	})
}

// BroadcastRewardsDistributed notifies clients that weekly rewards
// were paid out and the ranking reset
func (h *Hub) BroadcastRewardsDistributed(pool float64, winners int) {
	h.enqueue(&Message{
		Type: MessageTypeRewardsDistributed,
		Data: RewardsDistributed{
			Pool:    domain.FormatMoney(pool),
			Winners: winners,
		},
		Timestamp: time.Now(),
	})
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
