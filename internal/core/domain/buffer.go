package domain

// MaxBufferedEvents is the number of most recent events kept for the feed.
const MaxBufferedEvents = 100

// EventBuffer is the newest-first view cache of the live feed. It is not
// safe for concurrent use; the owner serializes access.
type EventBuffer struct {
	events   []Event
	capacity int
}

// NewEventBuffer creates an empty buffer. A non-positive capacity falls back
// to MaxBufferedEvents.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = MaxBufferedEvents
	}
	return &EventBuffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// Seed replaces the contents with a snapshot that is already newest first.
// Heartbeats are skipped and the result is capped.
func (b *EventBuffer) Seed(snapshot []Event) {
	b.events = b.events[:0]
	for _, e := range snapshot {
		if e.Type.IsHeartbeat() {
			continue
		}
		if len(b.events) == b.capacity {
			break
		}
		b.events = append(b.events, e)
	}
}

// Push prepends e and evicts the oldest entries past capacity.
// It reports false, leaving the buffer untouched, for heartbeats.
func (b *EventBuffer) Push(e Event) bool {
	if e.Type.IsHeartbeat() {
		return false
	}

	if len(b.events) < b.capacity {
		b.events = append(b.events, Event{})
	}
	copy(b.events[1:], b.events[:len(b.events)-1])
	b.events[0] = e
	return true
}

// Events returns a copy of the buffer, newest first.
func (b *EventBuffer) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Filter returns the buffered events of one type, newest first.
// An empty type or "all" returns everything.
func (b *EventBuffer) Filter(t EventType) []Event {
	if t == "" || t == "all" {
		return b.Events()
	}
	out := make([]Event, 0)
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	return len(b.events)
}

// FeedStats summarizes the buffered events per type.
type FeedStats struct {
	Total       int `json:"total"`
	Opened      int `json:"opened"`
	Claimed     int `json:"claimed"`
	Closed      int `json:"closed"`
	Escalations int `json:"escalations"`
}

// Stats counts the buffered events per type.
func (b *EventBuffer) Stats() FeedStats {
	stats := FeedStats{Total: len(b.events)}
	for _, e := range b.events {
		switch e.Type {
		case EventTicketOpen:
			stats.Opened++
		case EventTicketClaim:
			stats.Claimed++
		case EventTicketClose:
			stats.Closed++
		case EventEscalation:
			stats.Escalations++
		}
	}
	return stats
}

// ConnectionState is the live feed status shown to users.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnected    ConnectionState = "connected"
)
