package sse

const (
	defaultInitialBufferSize = 64 * 1024
	defaultMaxLineSize       = 1024 * 1024
)

// Option configures a Reader.
type Option func(*options)

type options struct {
	initialBufferSize int
	maxLineSize       int
}

// WithMaxLineSize sets the longest single line the reader accepts.
// Longer lines fail the reader with a TransportError wrapping bufio.ErrTooLong.
func WithMaxLineSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLineSize = n
		}
	}
}

// WithInitialBufferSize sets the size of the scanner's first buffer allocation.
func WithInitialBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialBufferSize = n
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		initialBufferSize: defaultInitialBufferSize,
		maxLineSize:       defaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.initialBufferSize > o.maxLineSize {
		o.initialBufferSize = o.maxLineSize
	}
	return o
}
