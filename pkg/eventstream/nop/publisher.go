// Package nop is the publisher used when no event backend is configured.
package nop

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/papercomputeco/claudekit/pkg/eventstream"
	"github.com/papercomputeco/claudekit/pkg/logger"
)

// Publisher discards every event, logging each at debug level.
type Publisher struct {
	logger    *slog.Logger
	discarded atomic.Int64
}

// NewPublisher returns a Publisher logging to l, or to nowhere when l is nil.
func NewPublisher(l *slog.Logger) *Publisher {
	if l == nil {
		l = logger.Nop()
	}
	return &Publisher{logger: l}
}

func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	p.discarded.Add(1)
	p.logger.Debug("turn event discarded, no brokers configured", "event_id", event.EventID)
	return nil
}

// Discarded returns how many events have been dropped.
func (p *Publisher) Discarded() int64 {
	return p.discarded.Load()
}

func (p *Publisher) Close() error {
	return nil
}
