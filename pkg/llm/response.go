package llm

// StopReason explains why the model stopped generating.
type StopReason string

const (
	StopReasonEndTurn      StopReason = "end_turn"
	StopReasonMaxTokens    StopReason = "max_tokens"
	StopReasonStopSequence StopReason = "stop_sequence"
	StopReasonToolUse      StopReason = "tool_use"

	// StopReasonPauseTurn means a long running server tool paused the turn.
	// Continue by sending the response content back in the next request.
	StopReasonPauseTurn StopReason = "pause_turn"

	StopReasonRefusal StopReason = "refusal"
)

// Usage holds token accounting for a request.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// Add returns the field-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:              u.InputTokens + o.InputTokens,
		OutputTokens:             u.OutputTokens + o.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens + o.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens + o.CacheReadInputTokens,
	}
}

// Total returns all input and output tokens, cached ones included.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// MessagesResponse is the result of a non-streaming Messages API call, or
// the accumulated result of a streamed one.
type MessagesResponse struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Role         Role          `json:"role"`
	Content      ContentBlocks `json:"content"`
	Model        string        `json:"model"`
	StopReason   StopReason    `json:"stop_reason,omitempty"`
	StopSequence *string       `json:"stop_sequence,omitempty"`
	Usage        Usage         `json:"usage"`
}

// Text returns the concatenated text of all text blocks in the response.
func (r *MessagesResponse) Text() string {
	return r.Content.Text()
}

// ToolUses returns the tool_use blocks of the response in order.
func (r *MessagesResponse) ToolUses() []ToolUseBlock {
	return r.Content.ToolUses()
}

// Message converts the response into an assistant message suitable for
// appending to the conversation history.
func (r *MessagesResponse) Message() Message {
	role := r.Role
	if role == "" {
		role = RoleAssistant
	}
	return Message{Role: role, Content: r.Content}
}

// CountTokensResponse is the result of the count_tokens endpoint.
type CountTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}
