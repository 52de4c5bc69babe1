package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// Frame types pushed to dashboard browsers.
const (
	FrameEvent    = "EVENT"
	FrameStatus   = "STATUS"
	FrameSnapshot = "SNAPSHOT"
	FramePong     = "PONG"
	FrameError    = "ERROR"
)

// Frame is one server-to-browser message.
type Frame struct {
	Type    string                 `json:"type"`
	Event   *domain.Event          `json:"event,omitempty"`
	Events  []domain.Event         `json:"events,omitempty"`
	Keys    []string               `json:"keys,omitempty"`
	State   domain.ConnectionState `json:"state,omitempty"`
	Filter  domain.EventType       `json:"filter,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// Hub maintains the set of active Clients and fans live feed changes out
// to them.
type Hub struct {
	// clients is only written by the Run goroutine
	clients map[*Client]struct{}

	broadcast  chan Frame
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// feed answers snapshot requests; set once before Run
	feed ports.LiveFeed

	// mu protects clients for readers outside Run
	mu sync.RWMutex

	logger *slog.Logger
}

var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Frame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// SetFeed connects the hub to the live feed used for snapshots. It must be
// called before Run.
func (h *Hub) SetFeed(feed ports.LiveFeed) {
	h.feed = feed
}

// BroadcastEvent queues an EVENT frame for every client whose filter
// accepts the event type.
func (h *Hub) BroadcastEvent(event domain.Event) {
	h.enqueue(Frame{Type: FrameEvent, Event: &event})
}

// BroadcastState queues a STATUS frame for every client.
func (h *Hub) BroadcastState(state domain.ConnectionState) {
	h.enqueue(Frame{Type: FrameStatus, State: state})
}

func (h *Hub) enqueue(frame Frame) {
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("broadcast channel full, dropping frame", "frame_type", frame.Type)
	}
}

// Run starts the hub's event loop until ctx is done. Remaining clients are
// disconnected on exit.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			client.CloseSend()
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case frame := <-h.broadcast:
			h.broadcastFrame(frame)
		}
	}
}

// Register adds a client. It reports false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.CloseSend()
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client registered",
		"session_id", client.SessionID,
		"total_connections", total,
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	client.CloseSend()
	if ok {
		h.logger.Info("client unregistered", "session_id", client.SessionID)
	}
}

// broadcastFrame runs on the Run goroutine, so slow clients are dropped
// directly instead of through the unregister channel.
func (h *Hub) broadcastFrame(frame Frame) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if frame.Type == FrameEvent && !client.Accepts(frame.Event.Type) {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.trySend(frame) {
			h.logger.Warn("client send buffer full, unregistering", "session_id", client.SessionID)
			h.unregisterClient(client)
		}
	}
}

// Snapshot builds the SNAPSHOT frame for filter from the live feed.
func (h *Hub) Snapshot(filter domain.EventType) Frame {
	frame := Frame{Type: FrameSnapshot, Filter: filter, Events: []domain.Event{}, State: domain.StateDisconnected}
	if h.feed == nil {
		return frame
	}
	frame.Events = h.feed.Events(filter)
	frame.Keys = domain.EventKeys(frame.Events)
	frame.State = h.feed.State()
	return frame
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
