// Package poller periodically collects a snapshot and publishes it.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/pario-ai/opencode-exporter/pkg/models"
	"github.com/pario-ai/opencode-exporter/pkg/source"
)

// Collector produces a snapshot for one cycle.
type Collector interface {
	Collect(ctx context.Context) (*models.Snapshot, error)
}

// Publisher receives successfully collected snapshots.
type Publisher interface {
	Publish(s *models.Snapshot) *models.Snapshot
}

// Loop collects on a fixed interval. A failed cycle publishes nothing, so
// the previous snapshot stays current; the loop then waits a full interval
// and tries again. There is no backoff.
type Loop struct {
	collector Collector
	publisher Publisher
	interval  time.Duration
	clock     quartz.Clock
	logger    *zap.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the real clock, for tests.
func WithClock(c quartz.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a Loop. interval must be positive.
func New(c Collector, p Publisher, interval time.Duration, opts ...Option) *Loop {
	l := &Loop{
		collector: c,
		publisher: p,
		interval:  interval,
		clock:     quartz.NewReal(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run collects immediately, then once per interval until ctx is cancelled.
// Cycles never overlap.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.Cycle(ctx)

		timer := l.clock.NewTimer(l.interval, "poller", "sleep")
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Cycle performs one collect-and-publish pass and reports whether a
// snapshot was published. Errors and panics are logged, never returned.
func (l *Loop) Cycle(ctx context.Context) (published bool) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("error collecting metrics", zap.Error(fmt.Errorf("panic: %v", r)))
			published = false
		}
	}()

	snap, err := l.collector.Collect(ctx)
	switch {
	case errors.Is(err, source.ErrNotFound):
		l.logger.Warn("no metrics collected, database not found", zap.Error(err))
		return false
	case err != nil:
		if ctx.Err() != nil {
			return false
		}
		l.logger.Error("error collecting metrics", zap.Error(err))
		return false
	case snap == nil:
		l.logger.Warn("no metrics collected")
		return false
	}

	l.publisher.Publish(snap)
	l.logger.Info("metrics collected",
		zap.Int64("sessions", snap.SessionCount),
		zap.Int64("messages", snap.MessageCount),
		zap.Float64("cost", snap.TotalCost),
		zap.Int("models", len(snap.ModelStats)))
	return true
}
