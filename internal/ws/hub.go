package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/waitlist-service/internal/domain"
	"github.com/spec-kit/waitlist-service/internal/events"
)

// Wire event names on the push channel.
const (
	eventInitialState      = "initialState"
	eventWaitlistUpdate    = "waitlistUpdate"
	eventPartyStatusUpdate = "partyStatusUpdate"
	eventCapacityUpdate    = "capacityUpdate"
	eventCheckIn           = "checkIn"
)

const writeWait = 5 * time.Second

// Engine is the subset of the waitlist engine the hub needs: a snapshot for
// newly connected clients and the inbound check-in signal.
type Engine interface {
	Snapshot() ([]domain.Party, int)
	CheckIn(ctx context.Context, partyID string)
}

// message is the outbound wire envelope.
type message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// inbound is the envelope clients send. checkIn is the only supported
// signal; it is fire-and-forget, so malformed frames are dropped silently.
type inbound struct {
	Event string `json:"event"`
	Data  struct {
		PartyID string `json:"partyId"`
	} `json:"data"`
}

type stateData struct {
	Waitlist       []domain.Party `json:"waitlist"`
	AvailableSeats int            `json:"availableSeats"`
}

// Hub fans engine events out to every connected websocket client. It
// subscribes to the dispatcher at construction; the engine stays unaware of
// the transport.
type Hub struct {
	engine  Engine
	logger  *zap.Logger
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewHub creates the hub and registers it on the dispatcher.
func NewHub(engine Engine, dispatcher events.Dispatcher, logger *zap.Logger) *Hub {
	h := &Hub{
		engine:  engine,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
	if dispatcher != nil {
		dispatcher.SubscribeAll(h.handleEvent)
	}
	return h
}

// Handle runs one websocket connection: sends the initial snapshot, then
// reads inbound signals until the client disconnects.
func (h *Hub) Handle(conn *websocket.Conn) {
	cl := &client{conn: conn}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("push client connected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("clients", total))
	defer h.drop(cl)

	waitlist, seats := h.engine.Snapshot()
	if err := cl.send(message{Event: eventInitialState, Data: stateData{Waitlist: waitlist, AvailableSeats: seats}}); err != nil {
		h.logger.Warn("initial state send failed", zap.Error(err))
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var signal inbound
		if err := json.Unmarshal(raw, &signal); err != nil {
			h.logger.Debug("dropping malformed frame", zap.Error(err))
			continue
		}
		if signal.Event == eventCheckIn && signal.Data.PartyID != "" {
			h.engine.CheckIn(context.Background(), signal.Data.PartyID)
		}
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) handleEvent(ctx context.Context, event events.Event) error {
	name := wireEventName(event.Type)
	if name == "" {
		return nil
	}
	h.broadcast(message{Event: name, Data: event.Payload})
	return nil
}

func (h *Hub) broadcast(msg message) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		targets = append(targets, cl)
	}
	h.mu.Unlock()

	for _, cl := range targets {
		if err := cl.send(msg); err != nil {
			h.logger.Warn("push write failed; dropping client", zap.Error(err))
			h.drop(cl)
		}
	}
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	_, present := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()
	if present {
		_ = cl.conn.Close()
		h.logger.Info("push client disconnected", zap.String("remote", cl.conn.RemoteAddr().String()))
	}
}

func (c *client) send(msg message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, body)
}

func wireEventName(t events.EventType) string {
	switch t {
	case events.EventWaitlistUpdated:
		return eventWaitlistUpdate
	case events.EventPartyStatusChanged:
		return eventPartyStatusUpdate
	case events.EventCapacityChanged:
		return eventCapacityUpdate
	}
	return ""
}
