package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/adapter/http/fiber/middleware"
	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/observability/telemetry"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

type delivery struct {
	learnerID string
	message   []byte
}

// Hub pushes per-learner updates (wallet, friend, answers) to every open
// /ws/updates connection of that learner.
type Hub struct {
	// Registered clients by learner.
	clients map[string]map[*Client]bool

	deliver    chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	subs []ports.Subscription
	mu   sync.RWMutex
	log  *zap.Logger
}

func NewHub(bus ports.EventBus, log *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[string]map[*Client]bool),
		deliver:    make(chan delivery, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
	for _, kind := range []domain.EventKind{domain.EventWallet, domain.EventFriend, domain.EventAnswer} {
		h.subs = append(h.subs, bus.Subscribe(kind, h.onEvent))
	}
	return h
}

func learnerOf(e domain.Event) string {
	switch ev := e.(type) {
	case domain.WalletEvent:
		return ev.LearnerID
	case domain.FriendEvent:
		return ev.LearnerID
	case domain.AnswerEvent:
		return ev.LearnerID
	}
	return ""
}

func (h *Hub) onEvent(e domain.Event) {
	learnerID := learnerOf(e)
	if learnerID == "" || h.Clients(learnerID) == 0 {
		return
	}
	data, err := json.Marshal(Envelope{Type: string(e.Kind()), Data: e})
	if err != nil {
		h.log.Error("Failed to encode update", zap.Error(err))
		return
	}
	select {
	case h.deliver <- delivery{learnerID: learnerID, message: data}:
	case <-h.done:
	default:
		h.log.Warn("Update hub is backlogged, dropping update", zap.String("learner_id", learnerID))
	}
}

// Run dispatches registrations and updates until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for _, s := range h.subs {
			s.Unsubscribe()
		}
		h.mu.Lock()
		for _, set := range h.clients {
			for client := range set {
				client.Close()
			}
		}
		h.clients = make(map[string]map[*Client]bool)
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.learnerID] == nil {
				h.clients[client.learnerID] = make(map[*Client]bool)
			}
			h.clients[client.learnerID][client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.learnerID]; ok {
				delete(set, client)
				if len(set) == 0 {
					delete(h.clients, client.learnerID)
				}
			}
			h.mu.Unlock()
			client.Close()
		case d := <-h.deliver:
			h.mu.RLock()
			for client := range h.clients[d.learnerID] {
				client.Send(d.message)
			}
			h.mu.RUnlock()
		}
	}
}

// Clients returns the number of open connections of a learner.
func (h *Hub) Clients(learnerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[learnerID])
}

// Handle serves one /ws/updates connection. Incoming messages are ignored;
// reading only keeps the connection alive.
func (h *Hub) Handle(conn *websocket.Conn) {
	learnerID, _ := conn.Locals(middleware.LearnerIDKey).(string)
	client := newClient(conn, learnerID, h.log)

	select {
	case h.register <- client:
	case <-h.done:
		return
	}
	telemetry.WebsocketClients.WithLabelValues("updates").Inc()
	defer telemetry.WebsocketClients.WithLabelValues("updates").Dec()

	go client.writePump()
	defer client.shutdown()
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
			client.Close()
		}
	}()

	client.prepareRead()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
