package stream

import (
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/claudekit/pkg/logger"
	"github.com/papercomputeco/claudekit/pkg/sse"
)

// Option configures a Stream.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	recorder   io.Writer
	keepalives bool
	hooks      []func(Event)
	sseOpts    []sse.Option
}

// WithLogger sets the logger used for debug output. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder tees the raw response bytes to w as they are read.
func WithRecorder(w io.Writer) Option {
	return func(o *options) {
		o.recorder = w
	}
}

// WithKeepalives makes Next return Ping events instead of dropping them.
func WithKeepalives(keep bool) Option {
	return func(o *options) {
		o.keepalives = keep
	}
}

// WithEventHook registers fn to observe every decoded event, pings included,
// before it is returned or dropped. Hooks run in registration order.
func WithEventHook(fn func(Event)) Option {
	return func(o *options) {
		if fn != nil {
			o.hooks = append(o.hooks, fn)
		}
	}
}

// WithMaxLineSize bounds the length of a single SSE line.
func WithMaxLineSize(n int) Option {
	return func(o *options) {
		o.sseOpts = append(o.sseOpts, sse.WithMaxLineSize(n))
	}
}

// Stream is a forward-only sequence of events decoded from one response
// body. It is not safe for concurrent use except for Close, which may be
// called from any goroutine to abandon the stream.
//
// The body is closed exactly once: when Next reaches the end of the body,
// when Next fails, or on the first call to Close, whichever comes first.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	opts   *options

	// err is sticky: once set every call to Next returns it.
	err error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New returns a Stream that decodes events from body and takes ownership of it.
func New(body io.ReadCloser, opts ...Option) *Stream {
	o := &options{
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Stream{
		body:   body,
		reader: sse.NewTeeReader(body, o.recorder, o.sseOpts...),
		opts:   o,
	}
}

// Next returns the next event. It returns io.EOF once the body is exhausted,
// a *DecodeError or *TransportError if the stream failed, and ErrClosed
// after Close. Errors are terminal: no event follows one.
//
// Keepalive pings and frames without payload are consumed silently.
func (s *Stream) Next() (Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.closed.Load() {
		s.err = ErrClosed
		return nil, s.err
	}

	for {
		frame, err := s.reader.Next()
		if err != nil {
			switch {
			case s.closed.Load():
				err = ErrClosed
			case !errors.Is(err, io.EOF):
				s.opts.logger.Debug("stream transport failed", "error", err)
			}
			return nil, s.fail(err)
		}

		ev, ok, err := Decode(*frame)
		if err != nil {
			s.opts.logger.Debug("stream frame decode failed",
				"event", frame.Event,
				"error", err,
			)
			return nil, s.fail(err)
		}

		if !ok {
			s.opts.logger.Debug("skipping frame without payload", "event", frame.Event)
			continue
		}

		if frame.Event != "" && frame.Event != ev.Type() {
			s.opts.logger.Debug("frame name disagrees with payload type",
				"event", frame.Event,
				"type", ev.Type(),
			)
		}

		for _, hook := range s.opts.hooks {
			hook(ev)
		}

		if _, isPing := ev.(Ping); isPing && !s.opts.keepalives {
			continue
		}

		return ev, nil
	}
}

// All returns an iterator over the remaining events. Iteration stops after
// the first error, which is yielded once; io.EOF is not yielded. Breaking
// out of the loop closes the stream.
func (s *Stream) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer func() { _ = s.Close() }()

		for {
			ev, err := s.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(nil, err)
				}
				return
			}

			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Close releases the response body. It is safe to call more than once and
// from another goroutine than the consumer; only the first call closes the
// body and its result is returned by every call.
func (s *Stream) Close() error {
	s.closed.Store(true)
	return s.release()
}

// Err returns the terminal error of the stream, or nil while it is still
// live or after a clean end.
func (s *Stream) Err() error {
	if s.err == nil || errors.Is(s.err, io.EOF) {
		return nil
	}
	return s.err
}

func (s *Stream) fail(err error) error {
	s.err = err
	_ = s.release()
	return err
}

func (s *Stream) release() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
