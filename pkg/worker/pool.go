// Package worker publishes turn events from a bounded background pool.
//
// The pool decouples event publishing from the chat loop so that a slow or
// unreachable broker never delays the next prompt.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/claudekit/pkg/eventstream"
	"github.com/papercomputeco/claudekit/pkg/logger"
)

const (
	defaultNumWorkers     = 2
	defaultQueueSize      = 128
	defaultPublishTimeout = 15 * time.Second
)

// ErrPoolClosed is returned when enqueueing onto a closed pool.
var ErrPoolClosed = errors.New("worker pool closed")

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every event. Required.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers int

	// QueueSize is the capacity of the buffered event channel.
	QueueSize int

	// PublishTimeout bounds one publish call.
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Stats counts the outcome of enqueued events.
type Stats struct {
	Published uint64
	Failed    uint64
	Dropped   uint64
}

// Pool publishes turn events asynchronously.
type Pool struct {
	config Config
	queue  chan *eventstream.TurnCompletedEvent
	group  errgroup.Group
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewPool creates a Pool and starts its workers.
func NewPool(c Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if c.NumWorkers < 0 || c.QueueSize < 0 {
		return nil, fmt.Errorf("invalid pool size: %d workers, queue %d", c.NumWorkers, c.QueueSize)
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	p := &Pool{
		config: c,
		queue:  make(chan *eventstream.TurnCompletedEvent, c.QueueSize),
		logger: c.Logger,
	}

	for i := range c.NumWorkers {
		p.group.Go(func() error {
			p.worker(i)
			return nil
		})
	}

	return p, nil
}

// Enqueue submits an event without blocking. It returns false when the
// queue is full or the pool closed; the event is dropped in that case.
func (p *Pool) Enqueue(ev *eventstream.TurnCompletedEvent) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		p.logger.Warn("event not queued, pool closed", "event_id", ev.EventID)
		return false
	}

	select {
	case p.queue <- ev:
		p.logger.Debug("event queued", "event_id", ev.EventID)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Error("event not queued, queue full, event dropped", "event_id", ev.EventID)
		return false
	}
}

// Close stops accepting events, waits for queued ones to be published and
// closes the publisher.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	_ = p.group.Wait()
	return p.config.Publisher.Close()
}

// Stats returns the counters so far.
func (p *Pool) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

func (p *Pool) worker(id int) {
	p.logger.Debug("worker started", "worker_id", id)

	for ev := range p.queue {
		p.publish(ev)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) publish(ev *eventstream.TurnCompletedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishTurn(ctx, ev); err != nil {
		p.failed.Add(1)
		p.logger.Error("publishing turn event failed",
			"event_id", ev.EventID,
			"error", err,
		)
		return
	}

	p.published.Add(1)
}
