package armesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"

	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
	sse "github.com/tmaxmax/go-sse"
)

// ErrStreamEnded is reported when the backend closes the event stream.
var ErrStreamEnded = errors.New("event stream ended by backend")

var _ ports.EventSource = (*Client)(nil)

// RecentEvents returns the backend snapshot of recent events, newest first.
func (c *Client) RecentEvents(ctx context.Context) ([]json.RawMessage, error) {
	var resp struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/recent_events", nil, nil, &resp, nil); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// Subscribe opens the server-push event stream. The returned stream is open;
// its messages are the raw data fields of the received events.
func (c *Client) Subscribe(ctx context.Context) (ports.EventStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(streamCtx, http.MethodGet, "/events", nil, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewBackendError(err, 0)
	}

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		cancel()
		return nil, mapStatus(resp.StatusCode, payload, nil)
	}

	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "text/event-stream" {
		resp.Body.Close()
		cancel()
		return nil, apperrors.NewBackendError(fmt.Errorf("unexpected content type %q", mediaType), resp.StatusCode)
	}

	stream := &eventStream{
		messages: make(chan []byte),
		body:     resp.Body,
		ctx:      streamCtx,
		cancel:   cancel,
	}
	go stream.pump()

	c.logger.InfoContext(ctx, "event stream opened")
	return stream, nil
}

// eventStream adapts one text/event-stream response to ports.EventStream.
type eventStream struct {
	messages chan []byte
	body     io.ReadCloser
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	err    error
	closed bool
	once   sync.Once
}

func (s *eventStream) pump() {
	defer close(s.messages)

	for event, err := range sse.Read(s.body, nil) {
		if err != nil {
			s.fail(err)
			return
		}
		if len(event.Data) == 0 {
			continue
		}

		select {
		case s.messages <- []byte(event.Data):
		case <-s.ctx.Done():
			return
		}
	}
	s.fail(ErrStreamEnded)
}

func (s *eventStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *eventStream) Messages() <-chan []byte {
	return s.messages
}

// Err reports why the stream ended. It is nil after Close.
func (s *eventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.err
}

func (s *eventStream) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		err = s.body.Close()
	})
	return err
}
