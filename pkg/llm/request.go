package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MinThinkingBudget is the smallest budget_tokens the API accepts.
const MinThinkingBudget = 1024

var (
	// ErrMissingModel is returned by Validate when no model is set.
	ErrMissingModel = errors.New("model is required")

	// ErrInvalidMaxTokens is returned by Validate for a non-positive max_tokens.
	ErrInvalidMaxTokens = errors.New("max_tokens must be positive")

	// ErrNoMessages is returned by Validate for an empty conversation.
	ErrNoMessages = errors.New("at least one message is required")
)

// MessagesRequest is the body of a POST /v1/messages call.
type MessagesRequest struct {
	Model         string          `json:"model"`
	MaxTokens     int             `json:"max_tokens"`
	Messages      []Message       `json:"messages"`
	System        *SystemPrompt   `json:"system,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    *ToolChoice     `json:"tool_choice,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Thinking      *ThinkingConfig `json:"thinking,omitempty"`
	OutputConfig  *OutputConfig   `json:"output_config,omitempty"`
	Metadata      *Metadata       `json:"metadata,omitempty"`
}

// NewMessagesRequest creates a request with the required fields set.
func NewMessagesRequest(model string, maxTokens int, messages ...Message) *MessagesRequest {
	return &MessagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  messages,
	}
}

// Validate checks the request for mistakes the API would reject.
func (r *MessagesRequest) Validate() error {
	if r.Model == "" {
		return ErrMissingModel
	}
	if r.MaxTokens <= 0 {
		return ErrInvalidMaxTokens
	}
	if len(r.Messages) == 0 {
		return ErrNoMessages
	}
	if r.Messages[0].Role != RoleUser {
		return fmt.Errorf("first message must have role %q, got %q", RoleUser, r.Messages[0].Role)
	}

	if r.Thinking != nil && r.Thinking.Type == ThinkingEnabled {
		if r.Thinking.BudgetTokens < MinThinkingBudget {
			return fmt.Errorf("thinking budget_tokens must be at least %d, got %d",
				MinThinkingBudget, r.Thinking.BudgetTokens)
		}
	}

	for _, t := range r.Tools {
		if t.Name == "" {
			return errors.New("tool name is required")
		}
	}

	if r.ToolChoice != nil && r.ToolChoice.Type == ToolChoiceTool && r.ToolChoice.Name == "" {
		return errors.New(`tool_choice of type "tool" requires a name`)
	}

	return nil
}

// Clone returns a shallow copy of the request with its own Messages slice,
// so the copy can be appended to without touching the original.
func (r *MessagesRequest) Clone() *MessagesRequest {
	cp := *r
	cp.Messages = append([]Message(nil), r.Messages...)
	return &cp
}

// SystemPrompt is either a plain string or a list of text blocks (used for
// prompt caching). The zero value encodes as an empty string.
type SystemPrompt struct {
	Text   string
	Blocks []TextBlock
}

// NewSystemPrompt returns a plain string system prompt.
func NewSystemPrompt(text string) *SystemPrompt {
	return &SystemPrompt{Text: text}
}

// NewCachedSystemPrompt returns a system prompt block marked as a cache breakpoint.
func NewCachedSystemPrompt(text string) *SystemPrompt {
	return &SystemPrompt{Blocks: []TextBlock{{Text: text, CacheControl: Ephemeral()}}}
}

// String returns the prompt text, joining blocks with blank lines.
func (s SystemPrompt) String() string {
	if len(s.Blocks) == 0 {
		return s.Text
	}

	out := ""
	for i, b := range s.Blocks {
		if i > 0 {
			out += "\n\n"
		}
		out += b.Text
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if len(s.Blocks) > 0 {
		return json.Marshal(s.Blocks)
	}
	return json.Marshal(s.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		s.Blocks = nil
		return json.Unmarshal(data, &s.Text)
	}

	s.Text = ""
	return json.Unmarshal(data, &s.Blocks)
}

// Tool describes a client tool the model may call.
type Tool struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	InputSchema  json.RawMessage `json:"input_schema"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

// Tool choice modes.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
	ToolChoiceTool = "tool"
	ToolChoiceNone = "none"
)

// ToolChoice controls how the model uses the provided tools.
type ToolChoice struct {
	Type                   string `json:"type"`
	Name                   string `json:"name,omitempty"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use,omitempty"`
}

// Thinking modes.
const (
	ThinkingEnabled  = "enabled"
	ThinkingDisabled = "disabled"
)

// ThinkingConfig turns extended thinking on or off.
type ThinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// EnableThinking returns a config enabling extended thinking with the given budget.
func EnableThinking(budgetTokens int) *ThinkingConfig {
	return &ThinkingConfig{Type: ThinkingEnabled, BudgetTokens: budgetTokens}
}

// DisableThinking returns a config explicitly disabling extended thinking.
func DisableThinking() *ThinkingConfig {
	return &ThinkingConfig{Type: ThinkingDisabled}
}

// Effort trades token spend against response quality.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// OutputConfig holds response behavior settings.
type OutputConfig struct {
	Effort Effort `json:"effort,omitempty"`
}

// Metadata carries request attribution.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// CountTokensRequest is the body of a POST /v1/messages/count_tokens call.
type CountTokensRequest struct {
	Model      string          `json:"model"`
	Messages   []Message       `json:"messages"`
	System     *SystemPrompt   `json:"system,omitempty"`
	Tools      []Tool          `json:"tools,omitempty"`
	ToolChoice *ToolChoice     `json:"tool_choice,omitempty"`
	Thinking   *ThinkingConfig `json:"thinking,omitempty"`
}

// CountTokensRequest derives the token counting body from the request.
func (r *MessagesRequest) CountTokensRequest() *CountTokensRequest {
	return &CountTokensRequest{
		Model:      r.Model,
		Messages:   r.Messages,
		System:     r.System,
		Tools:      r.Tools,
		ToolChoice: r.ToolChoice,
		Thinking:   r.Thinking,
	}
}
