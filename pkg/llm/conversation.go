package llm

// ConversationBuilder accumulates the system prompt, tools and message
// history of a multi-turn exchange and builds MessagesRequests from it.
type ConversationBuilder struct {
	system   *SystemPrompt
	tools    []Tool
	messages []Message
}

// NewConversationBuilder returns an empty builder.
func NewConversationBuilder() *ConversationBuilder {
	return &ConversationBuilder{}
}

// WithSystem sets a plain system prompt.
func (c *ConversationBuilder) WithSystem(prompt string) *ConversationBuilder {
	c.system = NewSystemPrompt(prompt)
	return c
}

// WithCachedSystem sets a system prompt marked as a cache breakpoint.
func (c *ConversationBuilder) WithCachedSystem(prompt string) *ConversationBuilder {
	c.system = NewCachedSystemPrompt(prompt)
	return c
}

// WithTools appends tools available to every request.
func (c *ConversationBuilder) WithTools(tools ...Tool) *ConversationBuilder {
	c.tools = append(c.tools, tools...)
	return c
}

// WithCachedTool appends a tool and marks it as a cache breakpoint.
func (c *ConversationBuilder) WithCachedTool(tool Tool) *ConversationBuilder {
	tool.CacheControl = Ephemeral()
	c.tools = append(c.tools, tool)
	return c
}

// AddUser appends a user text message.
func (c *ConversationBuilder) AddUser(text string) *ConversationBuilder {
	c.messages = append(c.messages, NewUserMessage(text))
	return c
}

// AddAssistant appends an assistant text message.
func (c *ConversationBuilder) AddAssistant(text string) *ConversationBuilder {
	c.messages = append(c.messages, NewAssistantMessage(text))
	return c
}

// AddMessage appends an arbitrary message, e.g. a full assistant response
// including tool_use blocks.
func (c *ConversationBuilder) AddMessage(m Message) *ConversationBuilder {
	c.messages = append(c.messages, m)
	return c
}

// AddToolResult appends a successful tool result.
func (c *ConversationBuilder) AddToolResult(toolUseID, content string) *ConversationBuilder {
	c.messages = append(c.messages, NewToolResultMessage(toolUseID, content, false))
	return c
}

// AddToolError appends a failed tool result.
func (c *ConversationBuilder) AddToolError(toolUseID, content string) *ConversationBuilder {
	c.messages = append(c.messages, NewToolResultMessage(toolUseID, content, true))
	return c
}

// Messages returns the message history.
func (c *ConversationBuilder) Messages() []Message {
	return c.messages
}

// Tools returns the registered tools.
func (c *ConversationBuilder) Tools() []Tool {
	return c.tools
}

// System returns the system prompt, or nil when unset.
func (c *ConversationBuilder) System() *SystemPrompt {
	return c.system
}

// Len returns the number of messages in the history.
func (c *ConversationBuilder) Len() int {
	return len(c.messages)
}

// Truncate drops every message after the first n.
func (c *ConversationBuilder) Truncate(n int) *ConversationBuilder {
	if n >= 0 && n < len(c.messages) {
		c.messages = c.messages[:n]
	}
	return c
}

// ClearMessages drops the history but keeps the system prompt and tools.
func (c *ConversationBuilder) ClearMessages() *ConversationBuilder {
	c.messages = nil
	return c
}

// Build returns a request for the current state. The returned request owns
// copies of the message and tool slices.
func (c *ConversationBuilder) Build(model string, maxTokens int) *MessagesRequest {
	req := NewMessagesRequest(model, maxTokens, append([]Message(nil), c.messages...)...)
	req.System = c.system
	if len(c.tools) > 0 {
		req.Tools = append([]Tool(nil), c.tools...)
	}
	return req
}
