package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/claudekit/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after an assistant turn finished.
	EventTypeTurnCompleted = "claudekit.turn.completed"
)

// TurnCompletedEvent is a transport-neutral payload for one finished turn.
type TurnCompletedEvent struct {
	SchemaVersion int                  `json:"schema_version"`
	EventType     string               `json:"event_type"`
	EventID       string               `json:"event_id"`
	EmittedAt     time.Time            `json:"emitted_at"`
	Source        EventSource          `json:"source"`
	RequestMeta   TurnRequestMeta      `json:"request_meta"`
	Turn          llm.ConversationTurn `json:"turn"`
}

// EventSource identifies where the turn originated.
type EventSource struct {
	// Command is the CLI command that ran the turn, e.g. "chat".
	Command string `json:"command"`

	// SessionID groups the turns of one chat session.
	SessionID string `json:"session_id,omitempty"`

	Host string `json:"host,omitempty"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`

	// TranscriptID names the recorded SSE transcript, if the turn was recorded.
	TranscriptID string `json:"transcript_id,omitempty"`
}

// NewTurnCompletedEvent builds an event for turn with a fresh id.
func NewTurnCompletedEvent(src EventSource, meta TurnRequestMeta, turn llm.ConversationTurn) *TurnCompletedEvent {
	if meta.DurationMs == 0 && !meta.StartedAt.IsZero() && !meta.CompletedAt.IsZero() {
		meta.DurationMs = meta.CompletedAt.Sub(meta.StartedAt).Milliseconds()
	}

	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        src,
		RequestMeta:   meta,
		Turn:          turn,
	}
}

// Key returns the partitioning key of the event: the response message id,
// or the event id for turns without a response.
func (e *TurnCompletedEvent) Key() string {
	if e.Turn.Response != nil && e.Turn.Response.ID != "" {
		return e.Turn.Response.ID
	}
	return e.EventID
}
