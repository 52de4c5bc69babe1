package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// DefaultSendBuffer is the outbound frame queue of a client.
	DefaultSendBuffer = 256
)

// ClientConfig tunes the keep-alive of a client connection.
type ClientConfig struct {
	SendBuffer int
	PongWait   time.Duration
	// PingPeriod must be less than PongWait.
	PingPeriod time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	return c
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	cfg  ClientConfig

	// SessionID identifies the dashboard session owning the connection.
	SessionID string

	// mu protects send, closed and filter
	mu     sync.Mutex
	send   chan Frame
	closed bool
	filter domain.EventType

	logger *slog.Logger
}

// NewClient creates a client for an upgraded connection. It is inert until
// registered with the hub and its pumps are started.
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string, filter domain.EventType, cfg ClientConfig, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		hub:       hub,
		conn:      conn,
		cfg:       cfg,
		SessionID: sessionID,
		send:      make(chan Frame, cfg.SendBuffer),
		filter:    filter,
		logger:    logger.With("session_id", sessionID),
	}
}

// Accepts reports whether the client's type filter lets events of t through.
func (c *Client) Accepts(t domain.EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.Matches(t)
}

// Filter returns the current type filter.
func (c *Client) Filter() domain.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Client) setFilter(t domain.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = t
}

// trySend queues a frame without blocking. It reports false when the queue
// is full; sending to a closed client is a silent no-op.
func (c *Client) trySend(frame Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// CloseSend closes the outbound queue exactly once
func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Start queues the initial snapshot and runs the I/O pumps.
func (c *Client) Start() {
	c.trySend(c.hub.Snapshot(c.Filter()))
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps frames from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Error("failed to write frame", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// ClientMessage is the structure for messages sent from the browser.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FilterPayload is the payload of SET_FILTER.
type FilterPayload struct {
	EventType domain.EventType `json:"eventType"`
}

func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		c.trySend(Frame{Type: FrameError, Message: "malformed message"})
		return
	}

	switch msg.Type {
	case "SET_FILTER":
		c.handleSetFilter(msg.Payload)

	case "PING":
		c.trySend(Frame{Type: FramePong})

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
		c.trySend(Frame{Type: FrameError, Message: "unknown message type"})
	}
}

func (c *Client) handleSetFilter(payload json.RawMessage) {
	var p FilterPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			c.trySend(Frame{Type: FrameError, Message: "malformed filter"})
			return
		}
	}

	if !p.EventType.IsFeedFilter() {
		c.trySend(Frame{Type: FrameError, Message: "unknown event type " + string(p.EventType)})
		return
	}

	c.setFilter(p.EventType)
	c.trySend(c.hub.Snapshot(p.EventType))
}
