// Package collector runs one full read of the data source and aggregates it.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/pario-ai/opencode-exporter/pkg/aggregator"
	"github.com/pario-ai/opencode-exporter/pkg/models"
	"github.com/pario-ai/opencode-exporter/pkg/source"
)

// OpenFunc opens the data source for a single cycle.
type OpenFunc func(path string) (source.Source, error)

// Collector produces a fresh snapshot from the database on every call.
type Collector struct {
	dbPath string
	open   OpenFunc
	now    func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithOpener replaces the function used to open the data source.
func WithOpener(open OpenFunc) Option {
	return func(c *Collector) { c.open = open }
}

// WithNow sets the clock used to stamp snapshots.
func WithNow(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New creates a Collector reading the database at dbPath.
func New(dbPath string, opts ...Option) *Collector {
	c := &Collector{
		dbPath: dbPath,
		open: func(path string) (source.Source, error) {
			return source.Open(path)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DBPath returns the configured database location.
func (c *Collector) DBPath() string {
	return c.dbPath
}

// Collect reads the database and returns the aggregated snapshot. When the
// database does not exist the error wraps source.ErrNotFound; an existing
// but empty database yields a zero-valued snapshot.
func (c *Collector) Collect(ctx context.Context) (*models.Snapshot, error) {
	src, err := c.open(c.dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	sessions, err := src.SessionCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect sessions: %w", err)
	}

	msgs, err := src.AssistantMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect messages: %w", err)
	}

	payloads := make([][]byte, len(msgs))
	for i, m := range msgs {
		payloads[i] = m.Data
	}

	return aggregator.Aggregate(aggregator.Input{
		SessionCount: sessions,
		Payloads:     payloads,
		CollectedAt:  c.now().UTC(),
	}), nil
}
