package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
)

// EventType is the discriminator of a live ticket event.
type EventType string

const (
	EventTicketOpen  EventType = "ticket_open"
	EventTicketClaim EventType = "ticket_claim"
	EventTicketClose EventType = "ticket_close"
	EventEscalation  EventType = "escalation"
	EventNotesUpdate EventType = "notes_update"
	EventHeartbeat   EventType = "heartbeat"
)

// Label returns the dashboard label for the event type.
// Unknown types are shown verbatim.
func (t EventType) Label() string {
	switch t {
	case EventTicketOpen:
		return "Neues Ticket"
	case EventTicketClaim:
		return "Übernommen"
	case EventTicketClose:
		return "Geschlossen"
	case EventEscalation:
		return "Eskaliert"
	case EventNotesUpdate:
		return "Notiz aktualisiert"
	default:
		return string(t)
	}
}

// IsHeartbeat reports whether the type is the stream liveness signal.
func (t EventType) IsHeartbeat() bool {
	return t == EventHeartbeat
}

// FeedFilters lists the accepted values of a live feed type filter.
var FeedFilters = []string{
	"all",
	string(EventTicketOpen),
	string(EventTicketClaim),
	string(EventTicketClose),
	string(EventEscalation),
	string(EventNotesUpdate),
}

// IsFeedFilter reports whether t selects feed events. Empty means all.
func (t EventType) IsFeedFilter() bool {
	return t == "" || containsString(FeedFilters, string(t))
}

// Matches reports whether an event of type e passes filter t.
func (t EventType) Matches(e EventType) bool {
	return t == "" || t == "all" || t == e
}

// Event is a single entry of the live ticket feed. The backend owns it;
// the dashboard only mirrors it.
type Event struct {
	// ID may be empty; list identity then falls back to the position.
	ID        string
	Type      EventType
	Timestamp string
	Payload   EventPayload
}

// wireEvent is the JSON shape sent by the backend on the stream and in snapshots.
type wireEvent struct {
	ID        string          `json:"id,omitempty"`
	EventType EventType       `json:"event_type"`
	Timestamp string          `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DecodeEvent parses one JSON-encoded event. Anything that is not a JSON
// object yields ErrMalformedEvent. A data object that does not fit the
// shape of its type is kept as an UnknownPayload.
func DecodeEvent(raw []byte) (Event, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Event{}, fmt.Errorf("%w: not a JSON object", apperrors.ErrMalformedEvent)
	}

	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedEvent, err)
	}

	return Event{
		ID:        w.ID,
		Type:      w.EventType,
		Timestamp: w.Timestamp,
		Payload:   decodePayload(w.EventType, w.Data),
	}, nil
}

// MarshalJSON encodes the event back into the backend wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ID:        e.ID,
		EventType: e.Type,
		Timestamp: e.Timestamp,
	}

	if e.Payload != nil {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal event payload: %w", err)
		}
		w.Data = data
	}

	return json.Marshal(w)
}

// UnmarshalJSON lets snapshots and tests decode events with encoding/json.
func (e *Event) UnmarshalJSON(raw []byte) error {
	decoded, err := DecodeEvent(raw)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// OccurredAt parses the backend timestamp. ok is false when it is missing
// or not ISO-8601.
func (e Event) OccurredAt() (t time.Time, ok bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// Key returns the list identity of the event, falling back to the index.
func (e Event) Key(index int) string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("idx-%d", index)
}

// EventKeys returns the list identity of every event in order.
func EventKeys(events []Event) []string {
	keys := make([]string, len(events))
	for i, e := range events {
		keys[i] = e.Key(i)
	}
	return keys
}

// EventDetails flattens the per-type payload into the fields a feed row shows.
type EventDetails struct {
	TicketID    string `json:"ticketId,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Username    string `json:"username,omitempty"`
	ClaimedBy   string `json:"claimedBy,omitempty"`
	ClosedBy    string `json:"closedBy,omitempty"`
	EscalatedBy string `json:"escalatedBy,omitempty"`
	UpdatedBy   string `json:"updatedBy,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// Details returns the display fields of the event.
func (e Event) Details() EventDetails {
	switch p := e.Payload.(type) {
	case TicketOpenedPayload:
		return EventDetails{TicketID: p.TicketID, Subject: p.Subject, Username: p.Username, Priority: p.Priority}
	case TicketClaimedPayload:
		return EventDetails{TicketID: p.TicketID, Subject: p.Subject, ClaimedBy: p.ClaimedBy}
	case TicketClosedPayload:
		return EventDetails{TicketID: p.TicketID, Subject: p.Subject, ClosedBy: p.ClosedBy}
	case EscalationPayload:
		return EventDetails{TicketID: p.TicketID, Subject: p.Subject, EscalatedBy: p.EscalatedBy}
	case NotesUpdatedPayload:
		return EventDetails{TicketID: p.TicketID, UpdatedBy: p.User}
	case UnknownPayload:
		return p.details()
	case HeartbeatPayload, nil:
		return EventDetails{}
	default:
		return EventDetails{}
	}
}

// ShortTicketID returns the first eight characters of a ticket id.
func ShortTicketID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
