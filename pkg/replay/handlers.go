package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/claudekit/pkg/sse"
	"github.com/papercomputeco/claudekit/pkg/stream"
	"github.com/papercomputeco/claudekit/pkg/transcript"
)

// HeaderTranscript names the transcript a response was replayed from.
const HeaderTranscript = "X-Claudekit-Transcript"

// errorBody is the Messages API error envelope, so clients map replay
// failures the same way they map upstream ones.
type errorBody struct {
	Type  string      `json:"type"`
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func apiError(c *fiber.Ctx, status int, errType, msg string) error {
	return c.Status(status).JSON(errorBody{
		Type:  "error",
		Error: errorDetail{Type: errType, Message: msg},
	})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListTranscripts returns the stored transcripts, newest first.
func (s *Server) handleListTranscripts(c *fiber.Ctx) error {
	infos, err := s.store.List()
	if err != nil {
		s.logger.Error("listing transcripts", "error", err)
		return apiError(c, fiber.StatusInternalServerError, "api_error", "failed to list transcripts")
	}
	if infos == nil {
		infos = []transcript.Info{}
	}
	return c.JSON(infos)
}

// handleMessages answers a Messages request from a transcript: the one named
// by the transcript query parameter or request header, else the newest. Streaming
// requests receive the recorded bytes; others receive the assembled message.
func (s *Server) handleMessages(c *fiber.Ctx) error {
	var req struct {
		Stream bool `json:"stream"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_request_error", "request body is not valid JSON")
	}

	mode := "message"
	if req.Stream {
		mode = "stream"
	}

	selected := c.Query("transcript")
	if selected == "" {
		selected = c.Get(HeaderTranscript)
	}

	id, body, err := s.open(selected)
	if err != nil {
		s.metrics.requests.WithLabelValues(mode, "not_found").Inc()
		if errors.Is(err, transcript.ErrNotFound) {
			return apiError(c, fiber.StatusNotFound, "not_found_error", err.Error())
		}
		s.logger.Error("opening transcript", "error", err)
		return apiError(c, fiber.StatusInternalServerError, "api_error", "failed to open transcript")
	}

	c.Set(HeaderTranscript, id)
	s.logger.Debug("replaying transcript", "transcript", id, "mode", mode)

	if req.Stream {
		s.metrics.requests.WithLabelValues(mode, "ok").Inc()
		return s.streamTranscript(c, body)
	}

	return s.assembleTranscript(c, body)
}

func (s *Server) open(id string) (string, io.ReadCloser, error) {
	if id == "" {
		latest, err := s.store.Latest()
		if err != nil {
			return "", nil, err
		}
		id = latest.ID
	}

	body, err := s.store.Open(id)
	if err != nil {
		return "", nil, err
	}
	return id, body, nil
}

// streamTranscript copies the transcript frame by frame, flushing after
// each and sleeping the configured delay in between.
func (s *Server) streamTranscript(c *fiber.Ctx, body io.ReadCloser) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	delay := s.config.Delay
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer body.Close()

		// The tee writes every raw line to the response as it is parsed,
		// so frame boundaries line up with the flushes.
		reader := sse.NewTeeReader(body, w)
		for {
			_, err := reader.Next()
			if flushErr := w.Flush(); flushErr != nil {
				s.logger.Debug("replay client went away", "error", flushErr)
				return
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.logger.Warn("replaying transcript", "error", err)
				}
				return
			}

			s.metrics.frames.Inc()
			if delay > 0 {
				time.Sleep(delay)
			}
		}
	})

	return nil
}

// assembleTranscript folds the transcript into one message. A recorded
// error event becomes the matching API error response.
func (s *Server) assembleTranscript(c *fiber.Ctx, body io.ReadCloser) error {
	resp, err := stream.Collect(stream.New(body))
	if err != nil {
		s.metrics.requests.WithLabelValues("message", "error").Inc()

		var streamErr stream.StreamError
		if errors.As(err, &streamErr) {
			return apiError(c, statusForStreamError(streamErr.Type), streamErr.Type, streamErr.Message)
		}
		s.logger.Warn("assembling transcript", "error", err)
		return apiError(c, fiber.StatusInternalServerError, "api_error", err.Error())
	}

	s.metrics.requests.WithLabelValues("message", "ok").Inc()
	return c.JSON(resp)
}

func statusForStreamError(errType string) int {
	switch errType {
	case "overloaded_error":
		return 529
	case "rate_limit_error":
		return http.StatusTooManyRequests
	case "invalid_request_error":
		return http.StatusBadRequest
	case "authentication_error":
		return http.StatusUnauthorized
	case "permission_error":
		return http.StatusForbidden
	case "not_found_error":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
