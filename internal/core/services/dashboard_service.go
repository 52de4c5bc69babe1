package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// Dashboard view limits
const (
	OverviewTicketCount   = 5
	DefaultAnalyticsDays  = 30
	MaxAnalyticsDays      = 365
	DefaultAuditPageSize  = 100
	MaxAuditPageSize      = 100
	MaxSearchQueryLength  = 200
	maxTicketIDLength     = 64
	maxPanelUserIDLength  = 64
	overviewSortField     = "created_at"
	overviewSortDirection = "desc"
)

// DashboardService implements the dashboard views on top of the backend
type DashboardService struct {
	backend ports.BackendClient
}

var _ ports.DashboardService = (*DashboardService)(nil)

// NewDashboardService creates a new dashboard service
func NewDashboardService(backend ports.BackendClient) *DashboardService {
	return &DashboardService{backend: backend}
}

// requireSession returns the caller's session, or ErrUnauthorized if ctx has none.
func requireSession(ctx context.Context) (*domain.Session, error) {
	session, ok := domain.SessionFromContext(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	return session, nil
}

func requireTicketWorker(ctx context.Context) error {
	session, err := requireSession(ctx)
	if err != nil {
		return err
	}
	if !session.User.Role.CanWorkTickets() {
		return apperrors.ErrForbidden
	}
	return nil
}

func requireAdmin(ctx context.Context) error {
	session, err := requireSession(ctx)
	if err != nil {
		return err
	}
	if !session.User.Role.CanManageUsers() {
		return apperrors.ErrForbidden
	}
	return nil
}

func validateID(field, id string, maxLen int) error {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxLen || strings.ContainsAny(id, "/?#") {
		errs := apperrors.NewValidationErrors()
		errs.Add(field, "Invalid identifier")
		return errs
	}
	return nil
}

// Overview returns the KPIs together with the latest tickets
func (s *DashboardService) Overview(ctx context.Context) (*domain.Overview, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}

	var (
		wg         sync.WaitGroup
		kpi        *domain.KPI
		page       *domain.TicketPage
		kpiErr     error
		ticketsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		kpi, kpiErr = s.backend.KPI(ctx)
	}()
	go func() {
		defer wg.Done()
		page, ticketsErr = s.backend.ListTickets(ctx, domain.TicketQuery{
			SortBy:    overviewSortField,
			SortOrder: overviewSortDirection,
			Page:      1,
			Limit:     OverviewTicketCount,
		})
	}()
	wg.Wait()

	if err := errors.Join(kpiErr, ticketsErr); err != nil {
		return nil, err
	}

	overview := &domain.Overview{KPI: *kpi, LatestTickets: page.Tickets}
	if overview.LatestTickets == nil {
		overview.LatestTickets = []domain.Ticket{}
	}
	return overview, nil
}

// KPI returns the aggregate ticket metrics
func (s *DashboardService) KPI(ctx context.Context) (*domain.KPI, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}
	return s.backend.KPI(ctx)
}

// ListTickets returns one validated page of the ticket list
func (s *DashboardService) ListTickets(ctx context.Context, query domain.TicketQuery) (*domain.TicketPage, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}
	if err := query.Normalize(); err != nil {
		return nil, err
	}
	return s.backend.ListTickets(ctx, query)
}

// GetTicket returns a ticket with its message history
func (s *DashboardService) GetTicket(ctx context.Context, ticketID string) (*domain.TicketDetail, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}
	if err := validateID("ticket_id", ticketID, maxTicketIDLength); err != nil {
		return nil, err
	}
	return s.backend.GetTicket(ctx, ticketID)
}

// UpdateTicket changes notes, priority or status. Requires a ticket-working role.
func (s *DashboardService) UpdateTicket(ctx context.Context, ticketID string, update domain.TicketUpdate) error {
	if err := requireTicketWorker(ctx); err != nil {
		return err
	}
	if err := validateID("ticket_id", ticketID, maxTicketIDLength); err != nil {
		return err
	}
	if err := update.Validate(); err != nil {
		return err
	}
	return s.backend.UpdateTicket(ctx, ticketID, update)
}

// ApplyTicketAction claims, closes, reopens or escalates a ticket
func (s *DashboardService) ApplyTicketAction(ctx context.Context, ticketID string, action domain.TicketAction) (*domain.ActionResult, error) {
	if err := requireTicketWorker(ctx); err != nil {
		return nil, err
	}
	if err := validateID("ticket_id", ticketID, maxTicketIDLength); err != nil {
		return nil, err
	}
	if !action.IsValid() {
		return nil, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "Unknown ticket action: "+string(action))
	}
	return s.backend.ApplyTicketAction(ctx, ticketID, action)
}

// Search runs a full-text ticket search. An empty query returns no results
// without asking the backend.
func (s *DashboardService) Search(ctx context.Context, query string) ([]domain.Ticket, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Ticket{}, nil
	}
	if len(query) > MaxSearchQueryLength {
		errs := apperrors.NewValidationErrors()
		errs.Add("q", "Must be at most 200 characters")
		return nil, errs
	}

	results, err := s.backend.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.Ticket{}
	}
	return results, nil
}

// SupportStats returns the per-supporter statistics
func (s *DashboardService) SupportStats(ctx context.Context) ([]domain.SupporterStats, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}
	return s.backend.SupportStats(ctx)
}

// SLA returns the SLA compliance report
func (s *DashboardService) SLA(ctx context.Context) (*domain.SLAReport, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}
	return s.backend.SLA(ctx)
}

// AuditLog returns one page of the audit log
func (s *DashboardService) AuditLog(ctx context.Context, page, limit int) (*domain.AuditPage, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}

	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultAuditPageSize
	}

	errs := apperrors.NewValidationErrors()
	if page < 1 {
		errs.Add("page", "Must be at least 1")
	}
	if limit < 1 || limit > MaxAuditPageSize {
		errs.Add("limit", "Must be between 1 and 100")
	}
	if errs.HasErrors() {
		return nil, errs
	}

	return s.backend.AuditLog(ctx, page, limit)
}

// Analytics returns the chart data: ticket volume over the last days plus
// the priority and type distributions.
func (s *DashboardService) Analytics(ctx context.Context, params ports.AnalyticsParams) (*domain.Analytics, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}

	days := params.Days
	if days == 0 {
		days = DefaultAnalyticsDays
	}
	if days < 1 || days > MaxAnalyticsDays {
		errs := apperrors.NewValidationErrors()
		errs.Add("days", "Must be between 1 and 365")
		return nil, errs
	}

	var (
		wg                               sync.WaitGroup
		result                           domain.Analytics
		volumeErr, priorityErr, typesErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		result.Volume, volumeErr = s.backend.Volume(ctx, days)
	}()
	go func() {
		defer wg.Done()
		result.Priority, priorityErr = s.backend.PriorityDistribution(ctx)
	}()
	go func() {
		defer wg.Done()
		result.Types, typesErr = s.backend.TypeDistribution(ctx)
	}()
	wg.Wait()

	if err := errors.Join(volumeErr, priorityErr, typesErr); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListUsers returns the panel users. Admin only.
func (s *DashboardService) ListUsers(ctx context.Context) ([]domain.PanelUser, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.backend.ListUsers(ctx)
}

// CreateUser creates a panel user. Admin only.
func (s *DashboardService) CreateUser(ctx context.Context, params domain.CreateUserParams) (*domain.PanelUser, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.backend.CreateUser(ctx, params)
}

// DeleteUser removes a panel user. Admins cannot delete themselves.
func (s *DashboardService) DeleteUser(ctx context.Context, userID string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := validateID("user_id", userID, maxPanelUserIDLength); err != nil {
		return err
	}

	session, _ := domain.SessionFromContext(ctx)
	if session.User.ID == userID {
		return apperrors.NewBadRequestError(apperrors.ErrBadRequest, "You cannot delete your own account")
	}
	return s.backend.DeleteUser(ctx, userID)
}

// GetSettings returns the panel settings. A backend without a settings
// store yields the defaults.
func (s *DashboardService) GetSettings(ctx context.Context) (*domain.Settings, error) {
	if _, err := requireSession(ctx); err != nil {
		return nil, err
	}

	settings, err := s.backend.GetSettings(ctx)
	if errors.Is(err, apperrors.ErrNotFound) {
		defaults := domain.DefaultSettings()
		return &defaults, nil
	}
	return settings, err
}

// UpdateSettings validates and stores the panel settings. Admin only.
func (s *DashboardService) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.backend.UpdateSettings(ctx, settings)
}
