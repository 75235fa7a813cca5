package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"blogcore/pkg/logger"
	"blogcore/store"
)

const (
	AuthStateType    = "AUTH_STATE"    // Current authentication state
	SessionEventType = "SESSION_EVENT" // Account event relayed from the backend
	NavigateType     = "NAVIGATE"      // Redirect decided by a guard
)

// navigateWait bounds how long Navigate waits for room in Broadcast.
const navigateWait = 5 * time.Second

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StateSource is the read side of the auth store.
type StateSource interface {
	Subscribe() (<-chan store.AuthState, func())
}

// Hub fans auth state and account events out to locally connected
// websocket clients. A client that joins receives the latest auth state
// first.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client

	mu        sync.Mutex
	lastState []byte

	done         chan struct{}
	stopOnce     sync.Once
	navigateWait time.Duration
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		Broadcast:    make(chan WSMessage, 16),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		done:         make(chan struct{}),
		navigateWait: navigateWait,
	}
}

// Run is the hub's event loop. It returns when ctx is done, closing every
// client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.Send)
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			initial := h.lastState
			h.mu.Unlock()

			if initial != nil {
				select {
				case client.Send <- initial:
				default:
					logger.Sugar.Warnf("Client %s's send buffer is full on join.", client.ID)
				}
			}

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			h.mu.Lock()
			if msg.Type == AuthStateType {
				h.lastState = payload
			}
			clientsToSend := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					// Lagging client: drop it rather than block the hub.
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.ID)
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.Send)
					}
					h.mu.Unlock()
				}
			}
		}
	}
}

// Follow broadcasts every auth state published by src until ctx is done.
func (h *Hub) Follow(ctx context.Context, src StateSource) {
	ch, unsubscribe := src.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(st)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling auth state: %v", err)
				continue
			}
			select {
			case h.Broadcast <- WSMessage{Type: AuthStateType, Payload: payload}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Navigate tells local clients to move to target. It waits for room in
// Broadcast, giving up once the hub has stopped or after navigateWait.
func (h *Hub) Navigate(target string) {
	payload, err := json.Marshal(map[string]string{"target": target})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling navigation: %v", err)
		return
	}

	timer := time.NewTimer(h.navigateWait)
	defer timer.Stop()

	select {
	case h.Broadcast <- WSMessage{Type: NavigateType, Payload: payload}:
	case <-h.done:
		logger.Sugar.Warnf("Hub has stopped, dropping navigation to %s", target)
	case <-timer.C:
		logger.Sugar.Warnf("Hub is busy, dropping navigation to %s", target)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
