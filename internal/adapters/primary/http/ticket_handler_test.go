package http

import (
	"context"
	stdhttp "net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
)

func TestTicketHandler_List(t *testing.T) {
	api := newTestAPI(t)
	session, token := api.login(t, domain.RoleSupport)

	api.dashboard.On("ListTickets",
		mock.MatchedBy(func(ctx context.Context) bool {
			s, ok := domain.SessionFromContext(ctx)
			return ok && s.ID == session.ID
		}),
		domain.TicketQuery{Status: domain.StatusOpen, Priority: "high", Search: "login", Page: 2, Limit: 10},
	).Return(&domain.TicketPage{
		Tickets: []domain.Ticket{{ID: "t-11", Subject: "Cannot login"}},
		Total:   25,
		Page:    2,
	}, nil).Once()

	rec := api.do(t, stdhttp.MethodGet, "/api/v1/tickets?status=open&priority=high&search=login&page=2&limit=10", token, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	resp := decodeJSON[PaginatedResponse[domain.Ticket]](t, rec)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "t-11", resp.Data[0].ID)
	assert.Equal(t, PaginationMetadata{Page: 2, Limit: 10, TotalCount: 25, Pages: 3, HasMore: true}, resp.Pagination)
}

func TestTicketHandler_ListDefaults(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login(t, domain.RoleViewer)

	api.dashboard.On("ListTickets", mock.Anything, domain.TicketQuery{}).
		Return(&domain.TicketPage{}, nil).Once()

	rec := api.do(t, stdhttp.MethodGet, "/api/v1/tickets", token, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	resp := decodeJSON[PaginatedResponse[domain.Ticket]](t, rec)
	assert.Empty(t, resp.Data)
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.Equal(t, domain.DefaultTicketPageSize, resp.Pagination.Limit)
	assert.False(t, resp.Pagination.HasMore)
}

func TestTicketHandler_ListBadPage(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login(t, domain.RoleViewer)

	rec := api.do(t, stdhttp.MethodGet, "/api/v1/tickets?page=two", token, nil)
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeJSON[ValidationErrorResponse](t, rec).Fields, "page")
}

func TestTicketHandler_Get(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login(t, domain.RoleViewer)

	api.dashboard.On("GetTicket", mock.Anything, "t-1").
		Return(&domain.TicketDetail{Ticket: domain.Ticket{ID: "t-1", Subject: "Refund"}}, nil).Once()
	api.dashboard.On("GetTicket", mock.Anything, "missing").
		Return(nil, apperrors.ErrTicketNotFound).Once()

	rec := api.do(t, stdhttp.MethodGet, "/api/v1/tickets/t-1", token, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "Refund", decodeJSON[domain.TicketDetail](t, rec).Ticket.Subject)

	rec = api.do(t, stdhttp.MethodGet, "/api/v1/tickets/missing", token, nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
	assert.Equal(t, "TICKET_NOT_FOUND", errorCode(t, rec))
}

func TestTicketHandler_Update(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login(t, domain.RoleSupport)

	api.dashboard.On("UpdateTicket", mock.Anything, "t-1", mock.MatchedBy(func(u domain.TicketUpdate) bool {
		return u.Notes != nil && *u.Notes == "called back" && u.Priority == nil
	})).Return(nil).Once()

	rec := api.do(t, stdhttp.MethodPut, "/api/v1/tickets/t-1", token, map[string]string{"notes": "called back"})
	assert.Equal(t, stdhttp.StatusNoContent, rec.Code)
}

func TestTicketHandler_Action(t *testing.T) {
	t.Run("claim", func(t *testing.T) {
		api := newTestAPI(t)
		_, token := api.login(t, domain.RoleSupport)

		api.dashboard.On("ApplyTicketAction", mock.Anything, "t-1", domain.ActionClaim).
			Return(&domain.ActionResult{Status: "claimed", ClaimedBy: "support"}, nil).Once()

		rec := api.do(t, stdhttp.MethodPost, "/api/v1/tickets/t-1/actions/claim", token, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		assert.Equal(t, "support", decodeJSON[domain.ActionResult](t, rec).ClaimedBy)
	})

	t.Run("viewer is refused inline", func(t *testing.T) {
		api := newTestAPI(t)
		_, token := api.login(t, domain.RoleViewer)

		api.dashboard.On("ApplyTicketAction", mock.Anything, "t-1", domain.ActionClose).
			Return(nil, apperrors.ErrForbidden).Once()

		rec := api.do(t, stdhttp.MethodPost, "/api/v1/tickets/t-1/actions/close", token, nil)
		assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
	})
}
