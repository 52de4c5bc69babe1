package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockBackendClient is a mock implementation of ports.BackendClient
type MockBackendClient struct {
	mock.Mock
}

var _ ports.BackendClient = (*MockBackendClient)(nil)

func NewMockBackendClient() *MockBackendClient {
	return &MockBackendClient{}
}

func (m *MockBackendClient) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.LoginResult), args.Error(1)
}

func (m *MockBackendClient) Me(ctx context.Context) (*domain.PanelUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PanelUser), args.Error(1)
}

func (m *MockBackendClient) KPI(ctx context.Context) (*domain.KPI, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KPI), args.Error(1)
}

func (m *MockBackendClient) ListTickets(ctx context.Context, query domain.TicketQuery) (*domain.TicketPage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TicketPage), args.Error(1)
}

func (m *MockBackendClient) GetTicket(ctx context.Context, ticketID string) (*domain.TicketDetail, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TicketDetail), args.Error(1)
}

func (m *MockBackendClient) UpdateTicket(ctx context.Context, ticketID string, update domain.TicketUpdate) error {
	args := m.Called(ctx, ticketID, update)
	return args.Error(0)
}

func (m *MockBackendClient) ApplyTicketAction(ctx context.Context, ticketID string, action domain.TicketAction) (*domain.ActionResult, error) {
	args := m.Called(ctx, ticketID, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActionResult), args.Error(1)
}

func (m *MockBackendClient) Search(ctx context.Context, query string) ([]domain.Ticket, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *MockBackendClient) SupportStats(ctx context.Context) ([]domain.SupporterStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SupporterStats), args.Error(1)
}

func (m *MockBackendClient) SLA(ctx context.Context) (*domain.SLAReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SLAReport), args.Error(1)
}

func (m *MockBackendClient) AuditLog(ctx context.Context, page, limit int) (*domain.AuditPage, error) {
	args := m.Called(ctx, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuditPage), args.Error(1)
}

func (m *MockBackendClient) Volume(ctx context.Context, days int) ([]domain.VolumePoint, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VolumePoint), args.Error(1)
}

func (m *MockBackendClient) PriorityDistribution(ctx context.Context) ([]domain.DistributionBucket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DistributionBucket), args.Error(1)
}

func (m *MockBackendClient) TypeDistribution(ctx context.Context) ([]domain.DistributionBucket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DistributionBucket), args.Error(1)
}

func (m *MockBackendClient) ListUsers(ctx context.Context) ([]domain.PanelUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PanelUser), args.Error(1)
}

func (m *MockBackendClient) CreateUser(ctx context.Context, params domain.CreateUserParams) (*domain.PanelUser, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PanelUser), args.Error(1)
}

func (m *MockBackendClient) DeleteUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockBackendClient) GetSettings(ctx context.Context) (*domain.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settings), args.Error(1)
}

func (m *MockBackendClient) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *MockBackendClient) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSessionRepository is a mock implementation of ports.SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

var _ ports.SessionRepository = (*MockSessionRepository)(nil)

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{}
}

func (m *MockSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

var _ ports.EventBroadcaster = (*MockEventBroadcaster)(nil)

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) BroadcastEvent(event domain.Event) {
	m.Called(event)
}

func (m *MockEventBroadcaster) BroadcastState(state domain.ConnectionState) {
	m.Called(state)
}

// MockSessionService is a mock implementation of ports.SessionService
type MockSessionService struct {
	mock.Mock
}

var _ ports.SessionService = (*MockSessionService)(nil)

func NewMockSessionService() *MockSessionService {
	return &MockSessionService{}
}

func (m *MockSessionService) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionService) Load(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionService) Logout(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionService) PurgeExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// FakeEventSource is a scripted ports.EventSource. Each Subscribe call pops
// the next entry of Streams; a nil stream fails the subscribe.
type FakeEventSource struct {
	mu          sync.Mutex
	Snapshot    []json.RawMessage
	SnapshotErr error
	Streams     []*FakeEventStream
	Subscribes  int
	Snapshots   int
	Subscribed  chan *FakeEventStream
}

var _ ports.EventSource = (*FakeEventSource)(nil)

func NewFakeEventSource(streams ...*FakeEventStream) *FakeEventSource {
	return &FakeEventSource{
		Streams:    streams,
		Subscribed: make(chan *FakeEventStream, 16),
	}
}

func (f *FakeEventSource) RecentEvents(ctx context.Context) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Snapshots++
	if f.SnapshotErr != nil {
		return nil, f.SnapshotErr
	}
	return f.Snapshot, nil
}

func (f *FakeEventSource) Subscribe(ctx context.Context) (ports.EventStream, error) {
	f.mu.Lock()
	f.Subscribes++
	if len(f.Streams) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := f.Streams[0]
	f.Streams = f.Streams[1:]
	f.mu.Unlock()

	f.Subscribed <- next
	if next == nil {
		return nil, errSubscribeFailed
	}
	return next, nil
}

// SubscribeCount returns how many times Subscribe was called.
func (f *FakeEventSource) SubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Subscribes
}

// SnapshotCount returns how many times RecentEvents was called.
func (f *FakeEventSource) SnapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Snapshots
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errSubscribeFailed = fakeError("subscribe failed")

// FakeEventStream is an in-memory ports.EventStream driven by the test.
type FakeEventStream struct {
	messages  chan []byte
	mu        sync.Mutex
	err       error
	dropped   bool
	closed    bool
	CloseHits int
}

var _ ports.EventStream = (*FakeEventStream)(nil)

func NewFakeEventStream() *FakeEventStream {
	return &FakeEventStream{messages: make(chan []byte)}
}

// Push delivers one raw message and blocks until the consumer takes it.
func (s *FakeEventStream) Push(raw string) {
	s.messages <- []byte(raw)
}

// Drop simulates a transport failure.
func (s *FakeEventStream) Drop(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropped {
		return
	}
	s.dropped = true
	s.err = err
	close(s.messages)
}

func (s *FakeEventStream) Messages() <-chan []byte { return s.messages }

func (s *FakeEventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *FakeEventStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseHits++
	s.closed = true
	if !s.dropped {
		s.dropped = true
		close(s.messages)
	}
	return nil
}

// Closed reports whether Close was called.
func (s *FakeEventStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MockDashboardService is a mock implementation of ports.DashboardService
type MockDashboardService struct {
	mock.Mock
}

var _ ports.DashboardService = (*MockDashboardService)(nil)

func NewMockDashboardService() *MockDashboardService {
	return &MockDashboardService{}
}

func (m *MockDashboardService) Overview(ctx context.Context) (*domain.Overview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Overview), args.Error(1)
}

func (m *MockDashboardService) KPI(ctx context.Context) (*domain.KPI, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KPI), args.Error(1)
}

func (m *MockDashboardService) ListTickets(ctx context.Context, query domain.TicketQuery) (*domain.TicketPage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TicketPage), args.Error(1)
}

func (m *MockDashboardService) GetTicket(ctx context.Context, ticketID string) (*domain.TicketDetail, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TicketDetail), args.Error(1)
}

func (m *MockDashboardService) UpdateTicket(ctx context.Context, ticketID string, update domain.TicketUpdate) error {
	args := m.Called(ctx, ticketID, update)
	return args.Error(0)
}

func (m *MockDashboardService) ApplyTicketAction(ctx context.Context, ticketID string, action domain.TicketAction) (*domain.ActionResult, error) {
	args := m.Called(ctx, ticketID, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActionResult), args.Error(1)
}

func (m *MockDashboardService) Search(ctx context.Context, query string) ([]domain.Ticket, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *MockDashboardService) SupportStats(ctx context.Context) ([]domain.SupporterStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SupporterStats), args.Error(1)
}

func (m *MockDashboardService) SLA(ctx context.Context) (*domain.SLAReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SLAReport), args.Error(1)
}

func (m *MockDashboardService) AuditLog(ctx context.Context, page, limit int) (*domain.AuditPage, error) {
	args := m.Called(ctx, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuditPage), args.Error(1)
}

func (m *MockDashboardService) Analytics(ctx context.Context, params ports.AnalyticsParams) (*domain.Analytics, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Analytics), args.Error(1)
}

func (m *MockDashboardService) ListUsers(ctx context.Context) ([]domain.PanelUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PanelUser), args.Error(1)
}

func (m *MockDashboardService) CreateUser(ctx context.Context, params domain.CreateUserParams) (*domain.PanelUser, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PanelUser), args.Error(1)
}

func (m *MockDashboardService) DeleteUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockDashboardService) GetSettings(ctx context.Context) (*domain.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settings), args.Error(1)
}

func (m *MockDashboardService) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// MockLiveFeed is a mock implementation of ports.LiveFeed
type MockLiveFeed struct {
	mock.Mock
}

var _ ports.LiveFeed = (*MockLiveFeed)(nil)

func NewMockLiveFeed() *MockLiveFeed {
	return &MockLiveFeed{}
}

func (m *MockLiveFeed) Events(filter domain.EventType) []domain.Event {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.Event)
}

func (m *MockLiveFeed) State() domain.ConnectionState {
	args := m.Called()
	return args.Get(0).(domain.ConnectionState)
}

func (m *MockLiveFeed) Stats() domain.FeedStats {
	args := m.Called()
	return args.Get(0).(domain.FeedStats)
}

func (m *MockLiveFeed) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
