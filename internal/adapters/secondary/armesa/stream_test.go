package armesa

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan []byte) ([]byte, bool) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream message")
		return nil, false
	}
}

func TestClient_RecentEvents(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/recent_events", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"events": []map[string]any{
			{"id": "e2", "event_type": "ticket_claim"},
			{"id": "e1", "event_type": "ticket_open"},
		}})
	}))

	events, err := client.RecentEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.JSONEq(t, `{"id":"e2","event_type":"ticket_claim"}`, string(events[0]))
}

func TestClient_SubscribeDeliversDataFields(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"id\":\"e1\",\"event_type\":\"ticket_open\"}\n\n")
		fmt.Fprint(w, ": comment line\n\n")
		fmt.Fprint(w, "data: {\"event_type\":\"heartbeat\"}\n\n")
		w.(http.Flusher).Flush()
	}))

	stream, err := client.Subscribe(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	msg, ok := receive(t, stream.Messages())
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"e1","event_type":"ticket_open"}`, string(msg))

	msg, ok = receive(t, stream.Messages())
	require.True(t, ok)
	assert.JSONEq(t, `{"event_type":"heartbeat"}`, string(msg))

	// The handler returned, so the backend closed the stream.
	_, ok = receive(t, stream.Messages())
	assert.False(t, ok)
	assert.Error(t, stream.Err())
}

func TestClient_SubscribeCloseIsIdempotent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	stream, err := client.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	assert.NotPanics(t, func() { _ = stream.Close() })

	_, ok := receive(t, stream.Messages())
	assert.False(t, ok)
	assert.NoError(t, stream.Err())
}

func TestClient_SubscribeRejected(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		}))

		_, err := client.Subscribe(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("not an event stream", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		}))

		_, err := client.Subscribe(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	})
}
