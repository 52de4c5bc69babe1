package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// DefaultReconnectDelay is the fixed pause between a dropped stream and the
// next subscribe attempt.
const DefaultReconnectDelay = 5 * time.Second

// EventStreamClientConfig tunes the live event client.
type EventStreamClientConfig struct {
	ReconnectDelay time.Duration
	BufferSize     int
	// SkipSnapshot leaves seeding to the caller, who has already called
	// Refresh before Start.
	SkipSnapshot bool
	// After schedules the reconnect timer. Defaults to time.After.
	After func(time.Duration) <-chan time.Time
}

// EventStreamClient keeps a bounded, newest-first view of the backend live
// events: it seeds from the recent-events snapshot, then prepends every
// message of the server-push stream. Transport drops are retried forever
// after a fixed delay.
type EventStreamClient struct {
	source         ports.EventSource
	broadcaster    ports.EventBroadcaster
	logger         *slog.Logger
	reconnectDelay time.Duration
	after          func(time.Duration) <-chan time.Time
	skipSnapshot   bool

	// mu protects buffer, state, stream and closed
	mu     sync.RWMutex
	buffer *domain.EventBuffer
	state  domain.ConnectionState
	stream ports.EventStream
	closed bool

	lifecycle sync.Mutex
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

var _ ports.LiveFeed = (*EventStreamClient)(nil)

// NewEventStreamClient creates a disconnected client with an empty buffer.
// broadcaster may be nil.
func NewEventStreamClient(
	source ports.EventSource,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
	cfg EventStreamClientConfig,
) *EventStreamClient {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}

	return &EventStreamClient{
		source:         source,
		broadcaster:    broadcaster,
		logger:         logger.With("component", "event_stream_client"),
		reconnectDelay: cfg.ReconnectDelay,
		after:          cfg.After,
		skipSnapshot:   cfg.SkipSnapshot,
		buffer:         domain.NewEventBuffer(cfg.BufferSize),
		state:          domain.StateDisconnected,
	}
}

// Start seeds the buffer from the snapshot and then subscribes to the live
// stream, both in the background. With SkipSnapshot only the subscription
// runs. A failed snapshot is logged and leaves the
// buffer empty; the subscription starts regardless. Start is a no-op after
// the first call.
func (c *EventStreamClient) Start(ctx context.Context) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.started {
		return
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx)
}

// Stop closes the transport and waits for the consumer to exit. No buffer
// mutation happens after Stop returns. Calling Stop more than once, or
// before Start, is safe.
func (c *EventStreamClient) Stop() {
	c.lifecycle.Lock()
	c.started = true
	cancel, done := c.cancel, c.done
	c.lifecycle.Unlock()

	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		c.closeStream(stream)
	}
	if done != nil {
		<-done
	}

	c.setState(domain.StateDisconnected)
	if !alreadyClosed {
		c.logger.Info("live event client stopped")
	}
}

// Refresh replaces the buffer with the backend snapshot of recent events.
func (c *EventStreamClient) Refresh(ctx context.Context) error {
	raws, err := c.source.RecentEvents(ctx)
	if err != nil {
		return fmt.Errorf("fetch recent events: %w", err)
	}

	events := make([]domain.Event, 0, len(raws))
	for _, raw := range raws {
		event, err := domain.DecodeEvent(raw)
		if err != nil {
			c.logger.Warn("skipping malformed snapshot event", "error", err)
			continue
		}
		events = append(events, event)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.buffer.Seed(events)

	c.logger.Debug("snapshot loaded", "events", c.buffer.Len())
	return nil
}

// Events returns the buffered events of one type, newest first. An empty
// filter or "all" returns every event.
func (c *EventStreamClient) Events(filter domain.EventType) []domain.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buffer.Filter(filter)
}

// State returns the current connection state.
func (c *EventStreamClient) State() domain.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats counts the buffered events per type.
func (c *EventStreamClient) Stats() domain.FeedStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buffer.Stats()
}

func (c *EventStreamClient) run(ctx context.Context) {
	defer close(c.done)

	if !c.skipSnapshot {
		if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("snapshot fetch failed, starting with an empty feed", "error", err)
		}
	}

	for {
		c.subscribe(ctx)
		if ctx.Err() != nil {
			return
		}

		c.logger.Info("reconnect scheduled", "delay", c.reconnectDelay.String())
		select {
		case <-ctx.Done():
			return
		case <-c.after(c.reconnectDelay):
		}
	}
}

// subscribe opens one stream and drains it until it drops or ctx ends.
func (c *EventStreamClient) subscribe(ctx context.Context) {
	stream, err := c.source.Subscribe(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.onError(nil, err)
		}
		return
	}

	if !c.attach(stream) {
		c.closeStream(stream)
		return
	}
	c.onOpen()

	messages := stream.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() == nil {
					c.onError(stream, stream.Err())
				}
				return
			}
			c.onMessage(msg)
		}
	}
}

func (c *EventStreamClient) attach(stream ports.EventStream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.stream = stream
	return true
}

func (c *EventStreamClient) onOpen() {
	c.logger.Info("live event stream connected")
	c.setState(domain.StateConnected)
}

func (c *EventStreamClient) onMessage(raw []byte) {
	event, err := domain.DecodeEvent(raw)
	if err != nil {
		c.logger.Warn("dropping malformed live event", "error", err)
		return
	}
	if event.Type.IsHeartbeat() {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.buffer.Push(event)
	c.mu.Unlock()

	c.broadcaster.BroadcastEvent(event)
}

// onError marks the feed disconnected and releases the failed transport.
func (c *EventStreamClient) onError(stream ports.EventStream, cause error) {
	c.logger.Warn("live event stream lost", "error", cause)

	c.mu.Lock()
	if stream != nil && c.stream == stream {
		c.stream = nil
	}
	c.mu.Unlock()

	c.setState(domain.StateDisconnected)
	if stream != nil {
		c.closeStream(stream)
	}
}

func (c *EventStreamClient) setState(state domain.ConnectionState) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed {
		c.broadcaster.BroadcastState(state)
	}
}

func (c *EventStreamClient) closeStream(stream ports.EventStream) {
	if err := stream.Close(); err != nil {
		c.logger.Debug("closing live event stream", "error", err)
	}
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastEvent(domain.Event)           {}
func (noopBroadcaster) BroadcastState(domain.ConnectionState) {}
