package domain

import (
	"encoding/json"
)

// EventPayload is the type-specific data of an Event. The set of
// implementations is closed; see the variants below.
type EventPayload interface {
	eventType() EventType
}

// TicketOpenedPayload is sent when the bot opens a new ticket.
type TicketOpenedPayload struct {
	TicketID string `json:"ticket_id"`
	Username string `json:"username,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// TicketClaimedPayload is sent when a supporter claims a ticket.
type TicketClaimedPayload struct {
	TicketID  string `json:"ticket_id"`
	ClaimedBy string `json:"claimed_by"`
	Subject   string `json:"subject,omitempty"`
}

// TicketClosedPayload is sent when a ticket is closed.
type TicketClosedPayload struct {
	TicketID string `json:"ticket_id"`
	ClosedBy string `json:"closed_by"`
	Subject  string `json:"subject,omitempty"`
}

// EscalationPayload is sent when a ticket is escalated.
type EscalationPayload struct {
	TicketID    string `json:"ticket_id"`
	EscalatedBy string `json:"escalated_by"`
	Subject     string `json:"subject,omitempty"`
}

// NotesUpdatedPayload is sent when ticket notes change.
type NotesUpdatedPayload struct {
	TicketID string `json:"ticket_id"`
	User     string `json:"user"`
}

// HeartbeatPayload carries nothing; heartbeats only prove liveness.
type HeartbeatPayload struct{}

// UnknownPayload keeps the data of event types this dashboard does not model.
type UnknownPayload struct {
	Raw json.RawMessage
}

func (TicketOpenedPayload) eventType() EventType  { return EventTicketOpen }
func (TicketClaimedPayload) eventType() EventType { return EventTicketClaim }
func (TicketClosedPayload) eventType() EventType  { return EventTicketClose }
func (EscalationPayload) eventType() EventType    { return EventEscalation }
func (NotesUpdatedPayload) eventType() EventType  { return EventNotesUpdate }
func (HeartbeatPayload) eventType() EventType     { return EventHeartbeat }
func (UnknownPayload) eventType() EventType       { return "" }

// MarshalJSON re-emits the original data verbatim.
func (p UnknownPayload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

// details pulls the commonly shown keys out of an unmodelled data object.
func (p UnknownPayload) details() EventDetails {
	var fields map[string]any
	if err := json.Unmarshal(p.Raw, &fields); err != nil {
		return EventDetails{}
	}

	str := func(key string) string {
		if s, ok := fields[key].(string); ok {
			return s
		}
		return ""
	}

	return EventDetails{
		TicketID:  str("ticket_id"),
		Subject:   str("subject"),
		Username:  str("username"),
		ClaimedBy: str("claimed_by"),
		ClosedBy:  str("closed_by"),
	}
}

func decodePayload(t EventType, data json.RawMessage) EventPayload {
	var (
		payload EventPayload
		err     error
	)

	switch t {
	case EventTicketOpen:
		var p TicketOpenedPayload
		err = unmarshalData(data, &p)
		payload = p
	case EventTicketClaim:
		var p TicketClaimedPayload
		err = unmarshalData(data, &p)
		payload = p
	case EventTicketClose:
		var p TicketClosedPayload
		err = unmarshalData(data, &p)
		payload = p
	case EventEscalation:
		var p EscalationPayload
		err = unmarshalData(data, &p)
		payload = p
	case EventNotesUpdate:
		var p NotesUpdatedPayload
		err = unmarshalData(data, &p)
		payload = p
	case EventHeartbeat:
		return HeartbeatPayload{}
	default:
		return UnknownPayload{Raw: data}
	}

	if err != nil {
		return UnknownPayload{Raw: data}
	}
	return payload
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
