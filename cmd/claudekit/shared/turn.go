package shared

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/claudekit/pkg/cliui"
	"github.com/papercomputeco/claudekit/pkg/client"
	"github.com/papercomputeco/claudekit/pkg/dotdir"
	"github.com/papercomputeco/claudekit/pkg/eventstream"
	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/stream"
	"github.com/papercomputeco/claudekit/pkg/transcript"
	"github.com/papercomputeco/claudekit/pkg/worker"
)

// Turn is the outcome of one streamed request.
type Turn struct {
	Response *llm.MessagesResponse
	Meta     eventstream.TurnRequestMeta
}

// StreamTurn streams req and writes text deltas to w as they arrive.
// Thinking deltas are written dimmed when showThinking is set. When store is
// not nil the raw stream is recorded as a new transcript. A request that
// fails before any body arrives leaves no transcript behind.
func StreamTurn(ctx context.Context, c *client.Client, req *llm.MessagesRequest, w io.Writer, store *transcript.Store, showThinking bool) (*Turn, error) {
	turn := &Turn{Meta: eventstream.TurnRequestMeta{
		StartedAt: time.Now().UTC(),
		Streaming: true,
	}}

	var (
		opts    []stream.Option
		discard = func() {}
	)
	if store != nil {
		id, rec, err := store.Create()
		if err != nil {
			return nil, fmt.Errorf("creating transcript: %w", err)
		}
		defer func() { _ = rec.Close() }()

		turn.Meta.TranscriptID = id
		opts = append(opts, stream.WithRecorder(rec))
		discard = func() {
			_ = rec.Close()
			_ = store.Remove(id)
		}
	}

	s, err := c.Stream(ctx, req, opts...)
	if err != nil {
		discard()
		return nil, err
	}

	acc := stream.NewAccumulator()
	for ev, err := range s.All() {
		if err != nil {
			return nil, err
		}
		if err := acc.Add(ev); err != nil {
			return nil, err
		}

		delta, ok := ev.(stream.ContentBlockDelta)
		if !ok {
			continue
		}
		switch d := delta.Delta.(type) {
		case stream.TextDelta:
			fmt.Fprint(w, d.Text)
		case stream.ThinkingDelta:
			if showThinking {
				fmt.Fprint(w, cliui.ThinkingStyle.Render(d.Thinking))
			}
		}
	}

	resp, err := acc.Response()
	if err != nil {
		return nil, err
	}

	turn.Response = resp
	turn.Meta.CompletedAt = time.Now().UTC()
	return turn, nil
}

// TranscriptStore opens the transcript store: replay.transcripts_dir when
// set, otherwise the transcripts/ directory below .claudekit/.
func TranscriptStore(cmd *cobra.Command, v *viper.Viper) (*transcript.Store, error) {
	dir := v.GetString("replay.transcripts_dir")
	if dir == "" {
		var err error
		dir, err = dotdir.NewManager().Subdir(ConfigDir(cmd), dotdir.TranscriptsDir)
		if err != nil {
			return nil, err
		}
	}

	return transcript.NewStore(dir)
}

// NewEventPool starts a worker pool publishing turn events to the publisher
// configured in v.
func NewEventPool(v *viper.Viper, l *slog.Logger) (*worker.Pool, error) {
	pub, err := NewPublisher(v, l)
	if err != nil {
		return nil, fmt.Errorf("creating turn event publisher: %w", err)
	}

	pool, err := worker.NewPool(worker.Config{
		Publisher: pub,
		Logger:    l,
	})
	if err != nil {
		_ = pub.Close()
		return nil, err
	}

	return pool, nil
}

// EventSource describes a turn run by the named command on this host.
func EventSource(command, sessionID string) eventstream.EventSource {
	host, _ := os.Hostname()
	return eventstream.EventSource{
		Command:   command,
		SessionID: sessionID,
		Host:      host,
	}
}
