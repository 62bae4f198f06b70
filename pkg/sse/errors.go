package sse

import "fmt"

// TransportError reports a failure of the underlying byte source (or of the
// tee destination) while reading frames. The stream cannot continue past it.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sse transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
