package http

import (
	"errors"
	stdhttp "net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/armesa-dashboard/internal/core/domain"
)

func liveEvent(t *testing.T, raw string) domain.Event {
	t.Helper()
	e, err := domain.DecodeEvent([]byte(raw))
	require.NoError(t, err)
	return e
}

func TestLiveHandler_Events(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login(t, domain.RoleViewer)

	escalation := liveEvent(t, `{"id":"e2","event_type":"escalation","data":{"ticket_id":"t1","escalated_by":"bob"}}`)
	api.feed.On("Events", domain.EventEscalation).Return([]domain.Event{escalation}).Once()
	api.feed.On("State").Return(domain.StateConnected)
	api.feed.On("Stats").Return(domain.FeedStats{Total: 2, Opened: 1, Escalations: 1})

	rec := api.do(t, stdhttp.MethodGet, "/api/v1/live/events?type=escalation", token, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	resp := decodeJSON[LiveFeedResponse](t, rec)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "e2", resp.Events[0].ID)
	assert.Equal(t, []string{"e2"}, resp.Keys)
	assert.Equal(t, domain.StateConnected, resp.State)
	assert.Equal(t, 2, resp.Stats.Total)
	assert.Equal(t, domain.EventEscalation, resp.Filter)
}

func TestLiveHandler_EventsEmptyFeed(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login(t, domain.RoleViewer)

	api.feed.On("Events", domain.EventType("")).Return(nil).Once()
	api.feed.On("State").Return(domain.StateDisconnected)
	api.feed.On("Stats").Return(domain.FeedStats{})

	rec := api.do(t, stdhttp.MethodGet, "/api/v1/live/events", token, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"events":[],"keys":[],"state":"disconnected","stats":{"total":0,"opened":0,"claimed":0,"closed":0,"escalations":0},"filter":""}`,
		rec.Body.String())
}

func TestLiveHandler_KeysFallBackToPosition(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login(t, domain.RoleViewer)

	api.feed.On("Events", domain.EventType("")).Return([]domain.Event{
		liveEvent(t, `{"id":"e9","event_type":"ticket_open"}`),
		liveEvent(t, `{"event_type":"ticket_close"}`),
	}).Once()
	api.feed.On("State").Return(domain.StateConnected)
	api.feed.On("Stats").Return(domain.FeedStats{Total: 2})

	rec := api.do(t, stdhttp.MethodGet, "/api/v1/live/events", token, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	resp := decodeJSON[LiveFeedResponse](t, rec)
	assert.Equal(t, []string{"e9", "idx-1"}, resp.Keys)
}

func TestLiveHandler_RejectsUnknownFilter(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.login(t, domain.RoleViewer)

	for _, filter := range []string{"heartbeat", "ticket_deleted"} {
		rec := api.do(t, stdhttp.MethodGet, "/api/v1/live/events?type="+filter, token, nil)
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code, filter)
	}
}

func TestLiveHandler_Refresh(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		api := newTestAPI(t)
		_, token := api.login(t, domain.RoleViewer)

		api.feed.On("Refresh", mock.Anything).Return(nil).Once()
		api.feed.On("Events", domain.EventType("")).Return([]domain.Event{}).Once()
		api.feed.On("State").Return(domain.StateConnected)
		api.feed.On("Stats").Return(domain.FeedStats{})

		rec := api.do(t, stdhttp.MethodPost, "/api/v1/live/refresh", token, nil)
		assert.Equal(t, stdhttp.StatusOK, rec.Code)
	})

	t.Run("backend down", func(t *testing.T) {
		api := newTestAPI(t)
		_, token := api.login(t, domain.RoleViewer)

		api.feed.On("Refresh", mock.Anything).Return(errors.New("dial tcp: connection refused")).Once()

		rec := api.do(t, stdhttp.MethodPost, "/api/v1/live/refresh", token, nil)
		assert.Equal(t, stdhttp.StatusBadGateway, rec.Code)
		assert.Equal(t, "BACKEND_UNAVAILABLE", errorCode(t, rec))
	})
}
