package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
)

// LoginResult is the backend answer to a successful login.
type LoginResult struct {
	Token     string
	User      domain.SessionUser
	ExpiresAt time.Time // zero when the token carries no expiry
}

// BackendClient defines the port for the Armesa backend REST API.
// Calls are authorized with the session carried by ctx.
type BackendClient interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Me(ctx context.Context) (*domain.PanelUser, error)
	KPI(ctx context.Context) (*domain.KPI, error)
	ListTickets(ctx context.Context, query domain.TicketQuery) (*domain.TicketPage, error)
	GetTicket(ctx context.Context, ticketID string) (*domain.TicketDetail, error)
	UpdateTicket(ctx context.Context, ticketID string, update domain.TicketUpdate) error
	ApplyTicketAction(ctx context.Context, ticketID string, action domain.TicketAction) (*domain.ActionResult, error)
	Search(ctx context.Context, query string) ([]domain.Ticket, error)
	SupportStats(ctx context.Context) ([]domain.SupporterStats, error)
	SLA(ctx context.Context) (*domain.SLAReport, error)
	AuditLog(ctx context.Context, page, limit int) (*domain.AuditPage, error)
	Volume(ctx context.Context, days int) ([]domain.VolumePoint, error)
	PriorityDistribution(ctx context.Context) ([]domain.DistributionBucket, error)
	TypeDistribution(ctx context.Context) ([]domain.DistributionBucket, error)
	ListUsers(ctx context.Context) ([]domain.PanelUser, error)
	CreateUser(ctx context.Context, params domain.CreateUserParams) (*domain.PanelUser, error)
	DeleteUser(ctx context.Context, userID string) error
	GetSettings(ctx context.Context) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) error
	Health(ctx context.Context) error
}

// EventStream is one open server-push subscription. The producer pushes raw
// message payloads onto Messages and closes it when the transport drops.
type EventStream interface {
	Messages() <-chan []byte
	// Err reports why Messages was closed; nil after Close.
	Err() error
	// Close releases the transport. Closing twice is a no-op.
	Close() error
}

// EventSource defines the port for the backend live event endpoints.
type EventSource interface {
	// RecentEvents returns the snapshot of recent events, newest first.
	RecentEvents(ctx context.Context) ([]json.RawMessage, error)
	// Subscribe opens the live stream. A nil error means the stream is open.
	Subscribe(ctx context.Context) (EventStream, error)
}

// EventBroadcaster defines the port for pushing live feed changes to observers.
type EventBroadcaster interface {
	BroadcastEvent(event domain.Event)
	BroadcastState(state domain.ConnectionState)
}

// LiveFeed defines the read side of the live event client.
type LiveFeed interface {
	Events(filter domain.EventType) []domain.Event
	State() domain.ConnectionState
	Stats() domain.FeedStats
	Refresh(ctx context.Context) error
}

// SessionRepository defines the port for persisting dashboard sessions.
type SessionRepository interface {
	Save(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionService defines the explicit session lifecycle.
type SessionService interface {
	Login(ctx context.Context, username, password string) (*domain.Session, error)
	Load(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	Logout(ctx context.Context, id uuid.UUID) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// AnalyticsParams selects the analytics window.
type AnalyticsParams struct {
	Days int
}

// DashboardService defines the dashboard views. Every call reads the
// caller's session from ctx.
type DashboardService interface {
	Overview(ctx context.Context) (*domain.Overview, error)
	KPI(ctx context.Context) (*domain.KPI, error)
	ListTickets(ctx context.Context, query domain.TicketQuery) (*domain.TicketPage, error)
	GetTicket(ctx context.Context, ticketID string) (*domain.TicketDetail, error)
	UpdateTicket(ctx context.Context, ticketID string, update domain.TicketUpdate) error
	ApplyTicketAction(ctx context.Context, ticketID string, action domain.TicketAction) (*domain.ActionResult, error)
	Search(ctx context.Context, query string) ([]domain.Ticket, error)
	SupportStats(ctx context.Context) ([]domain.SupporterStats, error)
	SLA(ctx context.Context) (*domain.SLAReport, error)
	AuditLog(ctx context.Context, page, limit int) (*domain.AuditPage, error)
	Analytics(ctx context.Context, params AnalyticsParams) (*domain.Analytics, error)
	ListUsers(ctx context.Context) ([]domain.PanelUser, error)
	CreateUser(ctx context.Context, params domain.CreateUserParams) (*domain.PanelUser, error)
	DeleteUser(ctx context.Context, userID string) error
	GetSettings(ctx context.Context) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) error
}
