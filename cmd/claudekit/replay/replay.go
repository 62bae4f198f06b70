// Package replaycmder provides the replay command, serving recorded
// transcripts over the Messages API.
package replaycmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	"github.com/papercomputeco/claudekit/pkg/config"
	"github.com/papercomputeco/claudekit/pkg/logger"
	"github.com/papercomputeco/claudekit/pkg/replay"
)

type replayCommander struct {
	listen         string
	transcriptsDir string
	delay          time.Duration
	logFile        string

	logger *slog.Logger
}

const replayLongDesc string = `Serve recorded transcripts as a stand-in Messages API.

POST /v1/messages answers with the newest transcript, or the one named by
the ?transcript= query parameter or the X-Claudekit-Transcript header.
Streaming requests receive the recording byte for byte; other requests
receive the message assembled from it.

Record transcripts with "claudekit chat --record" or "claudekit ask --record",
then point a client at the replay server:

  claudekit replay --listen :8787
  claudekit ask --base-url http://localhost:8787 "anything"`

const replayShortDesc string = "Serve recorded transcripts"

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := shared.Viper(cmd, config.FlagReplayListen, config.FlagTranscriptsDir)
			if err != nil {
				return err
			}
			cmder.listen = v.GetString("replay.listen")
			cmder.logger = shared.Logger(cmd)

			if cmder.logFile != "" {
				f, err := os.OpenFile(cmder.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()

				debug, _ := cmd.Flags().GetBool(shared.FlagDebug)
				cmder.logger = logger.Multi(
					cmder.logger,
					logger.New(logger.WithJSON(true), logger.WithDebug(debug), logger.WithWriter(f)),
				)
			}

			store, err := shared.TranscriptStore(cmd, v)
			if err != nil {
				return err
			}
			cmder.transcriptsDir = store.Dir()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			server := replay.NewServer(replay.Config{
				ListenAddr: cmder.listen,
				Delay:      cmder.delay,
			}, store, reg, cmder.logger)

			return cmder.run(ctx, server)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagReplayListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagTranscriptsDir, &cmder.transcriptsDir)
	cmd.Flags().DurationVar(&cmder.delay, "delay", 0, "Pause after every replayed frame (e.g. 20ms)")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

// run serves until ctx is cancelled or the server fails.
func (c *replayCommander) run(ctx context.Context, server *replay.Server) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("replay server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		c.logger.Info("shutting down replay server")
		return server.Shutdown()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
