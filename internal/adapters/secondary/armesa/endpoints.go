package armesa

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lorrc/armesa-dashboard/internal/auth"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

var _ ports.BackendClient = (*Client)(nil)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string             `json:"token"`
	User  domain.SessionUser `json:"user"`
}

// Login exchanges panel credentials for a backend token. The session
// expiry is read from the token's exp claim.
func (c *Client) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	var resp loginResponse
	ctx = anonymous(ctx)
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, loginRequest{Username: username, Password: password}, &resp, nil); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, apperrors.NewBackendError(errors.New("login response without token"), http.StatusOK)
	}

	return &ports.LoginResult{
		Token:     resp.Token,
		User:      resp.User,
		ExpiresAt: auth.BackendTokenExpiry(resp.Token),
	}, nil
}

func (c *Client) Me(ctx context.Context) (*domain.PanelUser, error) {
	var user domain.PanelUser
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &user, apperrors.ErrUserNotFound); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) KPI(ctx context.Context) (*domain.KPI, error) {
	var kpi domain.KPI
	if err := c.do(ctx, http.MethodGet, "/kpi", nil, nil, &kpi, nil); err != nil {
		return nil, err
	}
	return &kpi, nil
}

func ticketQueryValues(q domain.TicketQuery) url.Values {
	values := url.Values{}
	set := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}
	set("status", string(q.Status))
	set("priority", string(q.Priority))
	set("lang", q.Lang)
	set("search", q.Search)
	set("sort_by", q.SortBy)
	set("sort_order", q.SortOrder)
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

func (c *Client) ListTickets(ctx context.Context, query domain.TicketQuery) (*domain.TicketPage, error) {
	var page domain.TicketPage
	if err := c.do(ctx, http.MethodGet, "/tickets", ticketQueryValues(query), nil, &page, nil); err != nil {
		return nil, err
	}
	if page.Tickets == nil {
		page.Tickets = []domain.Ticket{}
	}
	return &page, nil
}

func (c *Client) GetTicket(ctx context.Context, ticketID string) (*domain.TicketDetail, error) {
	var detail domain.TicketDetail
	if err := c.do(ctx, http.MethodGet, "/tickets/"+url.PathEscape(ticketID), nil, nil, &detail, apperrors.ErrTicketNotFound); err != nil {
		return nil, err
	}
	if detail.Messages == nil {
		detail.Messages = []domain.TicketMessage{}
	}
	return &detail, nil
}

func (c *Client) UpdateTicket(ctx context.Context, ticketID string, update domain.TicketUpdate) error {
	return c.do(ctx, http.MethodPut, "/tickets/"+url.PathEscape(ticketID)+"/notes", nil, update, nil, apperrors.ErrTicketNotFound)
}

func (c *Client) ApplyTicketAction(ctx context.Context, ticketID string, action domain.TicketAction) (*domain.ActionResult, error) {
	var result domain.ActionResult
	path := "/tickets/" + url.PathEscape(ticketID) + "/" + string(action)
	if err := c.do(ctx, http.MethodPut, path, nil, nil, &result, apperrors.ErrTicketNotFound); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]domain.Ticket, error) {
	var resp struct {
		Results []domain.Ticket `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/search", url.Values{"q": {query}}, nil, &resp, nil); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []domain.Ticket{}
	}
	return resp.Results, nil
}

func (c *Client) SupportStats(ctx context.Context) ([]domain.SupporterStats, error) {
	var resp struct {
		Stats []domain.SupporterStats `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, "/support_stats", nil, nil, &resp, nil); err != nil {
		return nil, err
	}
	if resp.Stats == nil {
		resp.Stats = []domain.SupporterStats{}
	}
	return resp.Stats, nil
}

func (c *Client) SLA(ctx context.Context) (*domain.SLAReport, error) {
	var report domain.SLAReport
	if err := c.do(ctx, http.MethodGet, "/sla", nil, nil, &report, nil); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) AuditLog(ctx context.Context, page, limit int) (*domain.AuditPage, error) {
	var resp domain.AuditPage
	query := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
	if err := c.do(ctx, http.MethodGet, "/audit_log", query, nil, &resp, nil); err != nil {
		return nil, err
	}
	if resp.Logs == nil {
		resp.Logs = []domain.AuditEntry{}
	}
	return &resp, nil
}

func (c *Client) Volume(ctx context.Context, days int) ([]domain.VolumePoint, error) {
	var resp struct {
		Volume []domain.VolumePoint `json:"volume"`
	}
	if err := c.do(ctx, http.MethodGet, "/analytics/volume", url.Values{"days": {strconv.Itoa(days)}}, nil, &resp, nil); err != nil {
		return nil, err
	}
	if resp.Volume == nil {
		resp.Volume = []domain.VolumePoint{}
	}
	return resp.Volume, nil
}

// distribution fetches a {distribution: [{<key>: ..., count: n}]} answer.
func (c *Client) distribution(ctx context.Context, path, key string) ([]domain.DistributionBucket, error) {
	var resp struct {
		Distribution []map[string]any `json:"distribution"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp, nil); err != nil {
		return nil, err
	}

	buckets := make([]domain.DistributionBucket, 0, len(resp.Distribution))
	for _, entry := range resp.Distribution {
		bucket := domain.DistributionBucket{}
		if name, ok := entry[key].(string); ok {
			bucket.Key = name
		}
		if count, ok := entry["count"].(float64); ok {
			bucket.Count = int64(count)
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

func (c *Client) PriorityDistribution(ctx context.Context) ([]domain.DistributionBucket, error) {
	return c.distribution(ctx, "/analytics/priority_distribution", "priority")
}

func (c *Client) TypeDistribution(ctx context.Context) ([]domain.DistributionBucket, error) {
	return c.distribution(ctx, "/analytics/type_distribution", "type")
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.PanelUser, error) {
	var resp struct {
		Users []domain.PanelUser `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/users", nil, nil, &resp, nil); err != nil {
		return nil, err
	}
	if resp.Users == nil {
		resp.Users = []domain.PanelUser{}
	}
	return resp.Users, nil
}

func (c *Client) CreateUser(ctx context.Context, params domain.CreateUserParams) (*domain.PanelUser, error) {
	var user domain.PanelUser
	if err := c.do(ctx, http.MethodPost, "/admin/users", nil, params, &user, nil); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Message == "Username already exists" {
			return nil, apperrors.ErrUserExists
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(userID), nil, nil, nil, apperrors.ErrUserNotFound)
}

func (c *Client) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var settings domain.Settings
	if err := c.do(ctx, http.MethodGet, "/settings", nil, nil, &settings, nil); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *Client) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	return c.do(ctx, http.MethodPut, "/settings", nil, settings, nil, nil)
}

// Health checks that the backend answers. It sends no credentials.
func (c *Client) Health(ctx context.Context) error {
	return c.do(anonymous(ctx), http.MethodGet, "/health", nil, nil, nil, nil)
}
