package eventstream

import (
	"context"
	"errors"
)

var (
	// ErrNilTurnEvent is returned by publishers handed a nil event.
	ErrNilTurnEvent = errors.New("nil turn event")

	// ErrNoBrokers is returned when a broker-backed publisher is configured
	// without any broker address.
	ErrNoBrokers = errors.New("no brokers configured")
)

// Publisher delivers turn events to a backend. Implementations must be safe
// for use by the workers of a worker.Pool at once.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnCompletedEvent) error
	Close() error
}
