package domain

import (
	"strings"

	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
)

// TicketStatus mirrors the backend ticket status.
type TicketStatus string

const (
	StatusOpen      TicketStatus = "open"
	StatusClaimed   TicketStatus = "claimed"
	StatusEscalated TicketStatus = "escalated"
	StatusClosed    TicketStatus = "closed"
)

// IsValid checks if the status is one the backend accepts
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusClaimed, StatusEscalated, StatusClosed:
		return true
	}
	return false
}

// TicketPriority mirrors the backend ticket priority.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// IsValid checks if the priority is one the backend accepts
func (p TicketPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Ticket is the backend ticket document as the dashboard sees it.
type Ticket struct {
	ID              string         `json:"id"`
	ChannelID       string         `json:"channel_id,omitempty"`
	GuildID         string         `json:"guild_id,omitempty"`
	UserID          string         `json:"user_id,omitempty"`
	Username        string         `json:"username"`
	Subject         string         `json:"subject"`
	Type            string         `json:"type,omitempty"`
	Lang            string         `json:"lang,omitempty"`
	Priority        TicketPriority `json:"priority"`
	Description     string         `json:"description,omitempty"`
	Status          TicketStatus   `json:"status"`
	CreatedAt       string         `json:"created_at"`
	ClaimedBy       *string        `json:"claimed_by"`
	ClaimedAt       *string        `json:"claimed_at"`
	FirstResponseAt *string        `json:"first_response_at"`
	ClosedAt        *string        `json:"closed_at"`
	ClosedBy        *string        `json:"closed_by"`
	Notes           string         `json:"notes"`
	EscalationFlag  bool           `json:"escalation_flag"`
	SLABreached     bool           `json:"sla_breached"`
	TranscriptPath  *string        `json:"transcript_path,omitempty"`
}

// TicketMessage is one chat line of a ticket transcript.
type TicketMessage struct {
	ID        string `json:"id,omitempty"`
	TicketID  string `json:"ticket_id"`
	Author    string `json:"author,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp string `json:"timestamp"`
}

// TicketDetail is a ticket with its transcript.
type TicketDetail struct {
	Ticket   Ticket          `json:"ticket"`
	Messages []TicketMessage `json:"messages"`
}

// TicketPage is one page of the ticket list.
type TicketPage struct {
	Tickets []Ticket `json:"tickets"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	Pages   int      `json:"pages"`
}

// Ticket list limits
const (
	DefaultTicketPageSize = 50
	MaxTicketPageSize     = 100
)

// TicketQuery filters and orders the ticket list.
type TicketQuery struct {
	Status    TicketStatus
	Priority  TicketPriority
	Lang      string
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

var ticketSortFields = []string{"created_at", "priority", "status", "subject", "username", "claimed_at", "closed_at"}

// Normalize fills defaults and validates the query.
func (q *TicketQuery) Normalize() error {
	errs := apperrors.NewValidationErrors()

	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultTicketPageSize
	}
	if q.SortBy == "" {
		q.SortBy = "created_at"
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
	q.Search = strings.TrimSpace(q.Search)

	if q.Page < 1 {
		errs.Add("page", "Must be at least 1")
	}
	if q.Limit < 1 || q.Limit > MaxTicketPageSize {
		errs.Add("limit", "Must be between 1 and 100")
	}
	if q.Status != "" && !q.Status.IsValid() {
		errs.Add("status", "Must be one of: open, claimed, escalated, closed")
	}
	if q.Priority != "" && !q.Priority.IsValid() {
		errs.Add("priority", "Must be one of: low, medium, high, critical")
	}
	if q.SortOrder != "asc" && q.SortOrder != "desc" {
		errs.Add("sort_order", "Must be one of: asc, desc")
	}
	if !containsString(ticketSortFields, q.SortBy) {
		errs.Add("sort_by", "Must be one of: "+strings.Join(ticketSortFields, ", "))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// TicketUpdate changes notes, priority or status of a ticket.
// Nil fields are left untouched.
type TicketUpdate struct {
	Notes    *string         `json:"notes,omitempty"`
	Priority *TicketPriority `json:"priority,omitempty"`
	Status   *TicketStatus   `json:"status,omitempty"`
}

// MaxNotesLength bounds the notes text sent to the backend.
const MaxNotesLength = 10000

// Validate validates the update
func (u TicketUpdate) Validate() error {
	errs := apperrors.NewValidationErrors()

	if u.Notes == nil && u.Priority == nil && u.Status == nil {
		errs.Add("notes", "At least one of notes, priority or status is required")
	}
	if u.Notes != nil && len(*u.Notes) > MaxNotesLength {
		errs.Add("notes", "Must be at most 10000 characters")
	}
	if u.Priority != nil && !u.Priority.IsValid() {
		errs.Add("priority", "Must be one of: low, medium, high, critical")
	}
	if u.Status != nil && !u.Status.IsValid() {
		errs.Add("status", "Must be one of: open, claimed, escalated, closed")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// TicketAction is a one-shot workflow transition triggered from the dashboard.
type TicketAction string

const (
	ActionClaim    TicketAction = "claim"
	ActionClose    TicketAction = "close"
	ActionReopen   TicketAction = "reopen"
	ActionEscalate TicketAction = "escalate"
)

// IsValid reports whether the backend knows the action.
func (a TicketAction) IsValid() bool {
	switch a {
	case ActionClaim, ActionClose, ActionReopen, ActionEscalate:
		return true
	}
	return false
}

// ActionResult is the backend answer to a ticket action.
type ActionResult struct {
	Status    string `json:"status"`
	ClaimedBy string `json:"claimed_by,omitempty"`
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
