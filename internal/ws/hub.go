package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kiwari-pos/backoffice/internal/events"
	"github.com/rs/zerolog"
)

// Event is the envelope written to dashboard sockets.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type branchEvent struct {
	BranchID uuid.UUID
	Event    Event
}

// Hub keeps one room of sockets per branch and fans events out to them.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *branchEvent
	done       chan struct{}

	mu     sync.RWMutex
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *branchEvent, 256),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "ws").Logger(),
	}
}

// Run is the hub loop. It returns when ctx is cancelled, closing every
// client it still holds.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for branchID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, branchID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.branchID] == nil {
				h.rooms[client.branchID] = make(map[*Client]bool)
			}
			h.rooms[client.branchID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev.Event)
			if err != nil {
				h.logger.Error().Err(err).Str("type", ev.Event.Type).Msg("failed to marshal ws event")
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[ev.BranchID] {
				select {
				case client.send <- message:
				default:
					// slow consumer
					h.logger.Warn().Str("branch_id", ev.BranchID.String()).Msg("dropping ws client with full buffer")
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.branchID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.branchID)
	}
}

// Clients reports how many sockets are subscribed to a branch.
func (h *Hub) Clients(branchID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[branchID])
}

// BroadcastToBranch queues an event for every socket watching branchID.
// It is a no-op once the hub has stopped.
func (h *Hub) BroadcastToBranch(branchID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &branchEvent{BranchID: branchID, Event: event}:
	case <-h.done:
	}
}

// Publish satisfies events.Publisher so the order service can notify
// dashboards the same way it notifies the broker.
func (h *Hub) Publish(_ context.Context, ev events.OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal ws payload: %w", err)
	}
	h.BroadcastToBranch(ev.BranchID, Event{Type: ev.Type, Payload: payload})
	return nil
}
