// Package replay serves recorded SSE transcripts as a stand-in for the
// Messages API, so clients can be exercised offline against real streams.
package replay

import "time"

// Config is the replay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8787")
	ListenAddr string

	// Delay is slept after every replayed frame. Zero replays at full speed.
	Delay time.Duration
}
