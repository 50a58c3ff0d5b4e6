package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/events"
	"github.com/spec-kit/portal-auth/internal/session"
)

// SessionSweeper periodically removes sessions not seen within maxAge
// from every domain partition.
type SessionSweeper struct {
	store    session.Store
	events   events.Dispatcher
	logger   *zap.Logger
	interval time.Duration
	maxAge   time.Duration
}

// NewSessionSweeper constructs a sweeper. A non-positive maxAge disables sweeping.
func NewSessionSweeper(store session.Store, dispatcher events.Dispatcher, logger *zap.Logger, interval, maxAge time.Duration) *SessionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionSweeper{
		store:    store,
		events:   dispatcher,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Start runs the sweep loop until ctx is cancelled. The returned channel is
// closed once the loop has exited.
func (s *SessionSweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if s.maxAge <= 0 || s.interval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
	return done
}

// SweepOnce performs a single pass and reports how many sessions were removed.
func (s *SessionSweeper) SweepOnce(ctx context.Context) int {
	removed, err := s.store.SweepExpired(ctx, s.maxAge)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("session sweep failed", zap.Error(err))
		}
		return removed
	}
	if removed == 0 {
		return 0
	}
	s.logger.Info("expired sessions removed", zap.Int("count", removed))
	if s.events != nil {
		_ = s.events.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventSessionsSwept,
			Timestamp: time.Now().UTC(),
			Payload:   events.SessionsSweptPayload{Removed: removed},
		})
	}
	return removed
}
