package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/lorrc/armesa-dashboard/internal/core/mocks"
	"github.com/lorrc/armesa-dashboard/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawEvent(id string, t domain.EventType) string {
	return fmt.Sprintf(`{"id":%q,"event_type":%q,"timestamp":"2024-03-01T10:00:00Z","data":{"ticket_id":"ticket-%s"}}`, id, t, id)
}

// fakeClock hands out reconnect timers the test fires by hand.
type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
	fire   chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{fire: make(chan time.Time)}
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	return c.fire
}

func (c *fakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

func ids(events []domain.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func newClient(source *mocks.FakeEventSource, clock *fakeClock) *services.EventStreamClient {
	return services.NewEventStreamClient(source, nil, discardLogger(), services.EventStreamClientConfig{
		After: clock.After,
	})
}

func TestEventStreamClient_SnapshotThenLiveOrdering(t *testing.T) {
	stream := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(stream)
	// recent_events arrives newest first.
	source.Snapshot = []json.RawMessage{
		json.RawMessage(rawEvent("E2", domain.EventTicketClaim)),
		json.RawMessage(rawEvent("E1", domain.EventTicketOpen)),
	}

	client := newClient(source, newFakeClock())
	client.Start(context.Background())
	defer client.Stop()

	<-source.Subscribed
	require.Eventually(t, func() bool { return client.State() == domain.StateConnected }, waitFor, tick)

	stream.Push(rawEvent("E3", domain.EventTicketClose))
	stream.Push(rawEvent("E4", domain.EventEscalation))

	require.Eventually(t, func() bool { return len(client.Events("")) == 4 }, waitFor, tick)
	assert.Equal(t, []string{"E4", "E3", "E2", "E1"}, ids(client.Events("")))
	assert.Equal(t, []string{"E3"}, ids(client.Events(domain.EventTicketClose)))
	assert.Equal(t, 4, client.Stats().Total)
}

func TestEventStreamClient_HeartbeatIsNeverBuffered(t *testing.T) {
	stream := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(stream)
	source.Snapshot = []json.RawMessage{
		json.RawMessage(rawEvent("H0", domain.EventHeartbeat)),
		json.RawMessage(rawEvent("E1", domain.EventTicketOpen)),
	}

	client := newClient(source, newFakeClock())
	client.Start(context.Background())
	defer client.Stop()

	<-source.Subscribed
	stream.Push(rawEvent("H1", domain.EventHeartbeat))
	stream.Push(rawEvent("E2", domain.EventTicketClaim))

	require.Eventually(t, func() bool { return len(client.Events("")) == 2 }, waitFor, tick)
	for _, e := range client.Events("all") {
		assert.NotEqual(t, domain.EventHeartbeat, e.Type)
	}
	assert.Equal(t, []string{"E2", "E1"}, ids(client.Events("")))
}

func TestEventStreamClient_MalformedMessageLeavesStateUnchanged(t *testing.T) {
	stream := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(stream)

	client := newClient(source, newFakeClock())
	client.Start(context.Background())
	defer client.Stop()

	<-source.Subscribed
	stream.Push(rawEvent("E1", domain.EventTicketOpen))
	require.Eventually(t, func() bool { return len(client.Events("")) == 1 }, waitFor, tick)

	stream.Push(`not json`)
	stream.Push(`{"id":`)
	// The next valid message proves the malformed ones were consumed.
	stream.Push(rawEvent("E2", domain.EventTicketOpen))

	require.Eventually(t, func() bool { return len(client.Events("")) == 2 }, waitFor, tick)
	assert.Equal(t, []string{"E2", "E1"}, ids(client.Events("")))
	assert.Equal(t, domain.StateConnected, client.State())
}

func TestEventStreamClient_NullMessageIsDropped(t *testing.T) {
	stream := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(stream)
	source.Snapshot = []json.RawMessage{
		json.RawMessage(`null`),
		json.RawMessage(rawEvent("E1", domain.EventTicketOpen)),
	}

	var broadcasts []domain.Event
	var mu sync.Mutex
	broadcaster := mocks.NewMockEventBroadcaster()
	broadcaster.On("BroadcastState", mock.Anything).Return().Maybe()
	broadcaster.On("BroadcastEvent", mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		broadcasts = append(broadcasts, args.Get(0).(domain.Event))
		mu.Unlock()
	}).Return().Maybe()

	client := services.NewEventStreamClient(source, broadcaster, discardLogger(), services.EventStreamClientConfig{
		After: newFakeClock().After,
	})
	client.Start(context.Background())
	defer client.Stop()

	<-source.Subscribed
	require.Eventually(t, func() bool { return client.State() == domain.StateConnected }, waitFor, tick)
	require.Equal(t, []string{"E1"}, ids(client.Events("")))

	stream.Push(`null`)
	stream.Push(` null `)
	stream.Push(rawEvent("E2", domain.EventTicketClaim))

	require.Eventually(t, func() bool { return len(client.Events("")) == 2 }, waitFor, tick)
	assert.Equal(t, []string{"E2", "E1"}, ids(client.Events("")))
	assert.Equal(t, domain.StateConnected, client.State())
	assert.Equal(t, 2, client.Stats().Total)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"E2"}, ids(broadcasts))
}

func TestEventStreamClient_SkipSnapshotAfterManualRefresh(t *testing.T) {
	stream := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(stream)
	source.Snapshot = []json.RawMessage{json.RawMessage(rawEvent("E1", domain.EventTicketOpen))}

	client := services.NewEventStreamClient(source, nil, discardLogger(), services.EventStreamClientConfig{
		After:        newFakeClock().After,
		SkipSnapshot: true,
	})
	require.NoError(t, client.Refresh(context.Background()))

	client.Start(context.Background())
	defer client.Stop()

	<-source.Subscribed
	require.Eventually(t, func() bool { return client.State() == domain.StateConnected }, waitFor, tick)
	assert.Equal(t, 1, source.SnapshotCount())
	assert.Equal(t, []string{"E1"}, ids(client.Events("")))
}

func TestEventStreamClient_ReconnectsAfterFixedDelay(t *testing.T) {
	first := mocks.NewFakeEventStream()
	second := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(first, second)
	clock := newFakeClock()

	client := newClient(source, clock)
	client.Start(context.Background())
	defer client.Stop()

	<-source.Subscribed
	require.Eventually(t, func() bool { return client.State() == domain.StateConnected }, waitFor, tick)
	first.Push(rawEvent("E1", domain.EventTicketOpen))

	first.Drop(errors.New("connection reset"))
	require.Eventually(t, func() bool { return client.State() == domain.StateDisconnected }, waitFor, tick)
	require.Eventually(t, func() bool { return len(clock.Delays()) == 1 }, waitFor, tick)
	assert.Equal(t, 5*time.Second, clock.Delays()[0])
	assert.Equal(t, 1, source.SubscribeCount())
	assert.True(t, first.Closed())

	clock.fire <- time.Now()
	<-source.Subscribed
	require.Eventually(t, func() bool { return client.State() == domain.StateConnected }, waitFor, tick)

	// The buffer survives the reconnect.
	second.Push(rawEvent("E2", domain.EventTicketClaim))
	require.Eventually(t, func() bool { return len(client.Events("")) == 2 }, waitFor, tick)
	assert.Equal(t, []string{"E2", "E1"}, ids(client.Events("")))
}

func TestEventStreamClient_SubscribeFailureRetries(t *testing.T) {
	stream := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(nil, stream)
	clock := newFakeClock()

	client := newClient(source, clock)
	client.Start(context.Background())
	defer client.Stop()

	assert.Nil(t, <-source.Subscribed)
	require.Eventually(t, func() bool { return len(clock.Delays()) == 1 }, waitFor, tick)
	assert.Equal(t, domain.StateDisconnected, client.State())

	clock.fire <- time.Now()
	<-source.Subscribed
	require.Eventually(t, func() bool { return client.State() == domain.StateConnected }, waitFor, tick)
}

func TestEventStreamClient_SnapshotFailureIsNotFatal(t *testing.T) {
	stream := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(stream)
	source.SnapshotErr = errors.New("backend down")

	client := newClient(source, newFakeClock())
	client.Start(context.Background())
	defer client.Stop()

	<-source.Subscribed
	require.Eventually(t, func() bool { return client.State() == domain.StateConnected }, waitFor, tick)
	assert.Empty(t, client.Events(""))

	stream.Push(rawEvent("E1", domain.EventTicketOpen))
	require.Eventually(t, func() bool { return len(client.Events("")) == 1 }, waitFor, tick)
}

func TestEventStreamClient_StopIsIdempotentAndFinal(t *testing.T) {
	stream := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(stream)

	client := newClient(source, newFakeClock())
	client.Start(context.Background())

	<-source.Subscribed
	stream.Push(rawEvent("E1", domain.EventTicketOpen))
	require.Eventually(t, func() bool { return len(client.Events("")) == 1 }, waitFor, tick)

	client.Stop()
	client.Stop()

	assert.True(t, stream.Closed())
	assert.Equal(t, domain.StateDisconnected, client.State())
	assert.Equal(t, []string{"E1"}, ids(client.Events("")))

	// Refresh after Stop does not touch the buffer.
	source.Snapshot = []json.RawMessage{json.RawMessage(rawEvent("E9", domain.EventTicketOpen))}
	require.NoError(t, client.Refresh(context.Background()))
	assert.Equal(t, []string{"E1"}, ids(client.Events("")))

	// Start after Stop stays stopped.
	client.Start(context.Background())
	assert.Equal(t, 1, source.SubscribeCount())
}

func TestEventStreamClient_StopBeforeStart(t *testing.T) {
	source := mocks.NewFakeEventSource()
	client := newClient(source, newFakeClock())

	client.Stop()
	client.Start(context.Background())

	assert.Equal(t, domain.StateDisconnected, client.State())
	assert.Equal(t, 0, source.SubscribeCount())
}

func TestEventStreamClient_RefreshReplacesBuffer(t *testing.T) {
	source := mocks.NewFakeEventSource()
	source.Snapshot = []json.RawMessage{
		json.RawMessage(rawEvent("E2", domain.EventTicketClaim)),
		json.RawMessage(`garbage`),
		json.RawMessage(rawEvent("E1", domain.EventTicketOpen)),
	}

	client := newClient(source, newFakeClock())
	require.NoError(t, client.Refresh(context.Background()))
	assert.Equal(t, []string{"E2", "E1"}, ids(client.Events("")))

	source.Snapshot = []json.RawMessage{json.RawMessage(rawEvent("E5", domain.EventEscalation))}
	require.NoError(t, client.Refresh(context.Background()))
	assert.Equal(t, []string{"E5"}, ids(client.Events("")))
	assert.Equal(t, 1, client.Stats().Escalations)
}

func TestEventStreamClient_RefreshError(t *testing.T) {
	source := mocks.NewFakeEventSource()
	source.SnapshotErr = errors.New("boom")

	client := newClient(source, newFakeClock())
	err := client.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEventStreamClient_BufferNeverExceedsCapacity(t *testing.T) {
	stream := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(stream)

	client := newClient(source, newFakeClock())
	client.Start(context.Background())
	defer client.Stop()
	<-source.Subscribed

	types := []domain.EventType{
		domain.EventTicketOpen, domain.EventTicketClaim, domain.EventTicketClose,
		domain.EventEscalation, domain.EventNotesUpdate, domain.EventHeartbeat,
	}
	rng := rand.New(rand.NewSource(42))
	var lastID string
	for i := 0; i < 300; i++ {
		et := types[rng.Intn(len(types))]
		id := fmt.Sprintf("E%d", i)
		stream.Push(rawEvent(id, et))
		if et != domain.EventHeartbeat {
			lastID = id
		}
	}
	stream.Push(rawEvent("last", domain.EventTicketOpen))
	lastID = "last"

	require.Eventually(t, func() bool {
		events := client.Events("")
		return len(events) > 0 && events[0].ID == lastID
	}, waitFor, tick)
	assert.Len(t, client.Events(""), domain.MaxBufferedEvents)
}

func TestEventStreamClient_Broadcasts(t *testing.T) {
	stream := mocks.NewFakeEventStream()
	source := mocks.NewFakeEventSource(stream)
	broadcaster := mocks.NewMockEventBroadcaster()
	broadcaster.On("BroadcastState", mock.Anything).Return()
	broadcaster.On("BroadcastEvent", mock.Anything).Return()

	client := services.NewEventStreamClient(source, broadcaster, discardLogger(), services.EventStreamClientConfig{
		After: newFakeClock().After,
	})
	client.Start(context.Background())

	<-source.Subscribed
	stream.Push(rawEvent("H", domain.EventHeartbeat))
	stream.Push(rawEvent("E1", domain.EventTicketOpen))
	require.Eventually(t, func() bool { return len(client.Events("")) == 1 }, waitFor, tick)

	client.Stop()

	broadcaster.AssertCalled(t, "BroadcastState", domain.StateConnected)
	broadcaster.AssertCalled(t, "BroadcastState", domain.StateDisconnected)
	broadcaster.AssertNumberOfCalls(t, "BroadcastEvent", 1)
	broadcaster.AssertCalled(t, "BroadcastEvent", mock.MatchedBy(func(e domain.Event) bool {
		return e.ID == "E1"
	}))
}
