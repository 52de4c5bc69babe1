package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/lorrc/armesa-dashboard/internal/core/mocks"
	"github.com/lorrc/armesa-dashboard/internal/core/services"
	"github.com/lorrc/armesa-dashboard/internal/infrastructure/logging"
)

// lockedBuffer lets the purge goroutine log while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPurgeSessions_LogsEachPurgeOnce(t *testing.T) {
	out := &lockedBuffer{}
	logger := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: out})

	repo := mocks.NewMockSessionRepository()
	repo.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(3), nil).Once()
	repo.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()

	sessions := services.NewSessionService(mocks.NewMockBackendClient(), repo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		purgeSessions(ctx, sessions, 5*time.Millisecond, logger)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "expired sessions purged")
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, strings.Count(out.String(), "expired sessions purged"))
}
