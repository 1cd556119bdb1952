package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Message is the envelope every websocket frame carries.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type ClientType string

const (
	// technicians receive their own job events and push location pings
	ClientTypeTechnician ClientType = "technician"
	// dispatchers (admin, manager, dispatcher roles) watch everything
	ClientTypeDispatcher ClientType = "dispatcher"
)

type ClientInfo struct {
	UserID     int64
	Role       string
	ClientType ClientType
}

// Hub tracks connected websocket clients and routes push events to
// them. One client per user: a reconnect replaces the old connection.
type Hub struct {
	technicians map[int64]*Client
	dispatchers map[int64]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan BroadcastMessage

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// BroadcastMessage targets an audience. Empty Audience means every
// client, zero UserID means every client of the audience.
type BroadcastMessage struct {
	Audience ClientType
	UserID   int64
	Message  Message
}

func NewHub(ctx context.Context) *Hub {
	ctx, cancel := context.WithCancel(ctx)
	return &Hub{
		technicians: make(map[int64]*Client),
		dispatchers: make(map[int64]*Client),
		register:    make(chan *Client, 10),
		unregister:  make(chan *Client, 10),
		broadcast:   make(chan BroadcastMessage, 100),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (h *Hub) Run() {
	log.Info().Msg("websocket hub started")
	defer log.Info().Msg("websocket hub stopped")

	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) clientsFor(t ClientType) map[int64]*Client {
	if t == ClientTypeTechnician {
		return h.technicians
	}
	return h.dispatchers
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clientsFor(client.info.ClientType)
	if old, exists := clients[client.info.UserID]; exists {
		close(old.done)
	}
	clients[client.info.UserID] = client
	log.Info().
		Int64("user_id", client.info.UserID).
		Str("client_type", string(client.info.ClientType)).
		Msg("websocket client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clientsFor(client.info.ClientType)
	// a reconnect may already have replaced this client; only drop the
	// map entry when it still points at the one being unregistered
	if existing, exists := clients[client.info.UserID]; exists && existing == client {
		delete(clients, client.info.UserID)
		client.closeOnce.Do(func() {
			close(client.send)
		})
		log.Info().
			Int64("user_id", client.info.UserID).
			Str("client_type", string(client.info.ClientType)).
			Msg("websocket client disconnected")
	}
}

func (h *Hub) broadcastMessage(msg BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	deliver := func(c *Client) {
		select {
		case c.send <- msg.Message:
		default:
			log.Warn().
				Int64("user_id", c.info.UserID).
				Str("client_type", string(c.info.ClientType)).
				Msg("send buffer full, dropping message")
		}
	}

	targets := func(clients map[int64]*Client) {
		if msg.UserID != 0 {
			if c, ok := clients[msg.UserID]; ok {
				deliver(c)
			}
			return
		}
		for _, c := range clients {
			deliver(c)
		}
	}

	switch msg.Audience {
	case ClientTypeTechnician:
		targets(h.technicians)
	case ClientTypeDispatcher:
		targets(h.dispatchers)
	default:
		targets(h.technicians)
		targets(h.dispatchers)
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) Broadcast(msg BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		log.Warn().Msg("broadcast channel full, dropping message")
	}
}

func (h *Hub) SendToTechnician(userID int64, msg Message) {
	h.Broadcast(BroadcastMessage{Audience: ClientTypeTechnician, UserID: userID, Message: msg})
}

func (h *Hub) BroadcastToDispatchers(msg Message) {
	h.Broadcast(BroadcastMessage{Audience: ClientTypeDispatcher, Message: msg})
}

func (h *Hub) BroadcastToAll(msg Message) {
	h.Broadcast(BroadcastMessage{Message: msg})
}

func (h *Hub) IsTechnicianOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.technicians[userID]
	return exists
}

func (h *Hub) OnlineTechnicianIDs() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]int64, 0, len(h.technicians))
	for id := range h.technicians {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) OnlineTechnicianCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.technicians)
}

func (h *Hub) OnlineDispatcherCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.dispatchers)
}

func (h *Hub) Shutdown() {
	log.Info().Msg("shutting down websocket hub")
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.technicians {
		client.closeOnce.Do(func() {
			close(client.send)
		})
	}
	for _, client := range h.dispatchers {
		client.closeOnce.Do(func() {
			close(client.send)
		})
	}
}
