package llm

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role          `json:"role"`
	Content ContentBlocks `json:"content"`
}

// NewUserMessage creates a user message holding a single text block.
func NewUserMessage(text string) Message {
	return Message{
		Role:    RoleUser,
		Content: ContentBlocks{TextBlock{Text: text}},
	}
}

// NewAssistantMessage creates an assistant message holding a single text block.
func NewAssistantMessage(text string) Message {
	return Message{
		Role:    RoleAssistant,
		Content: ContentBlocks{TextBlock{Text: text}},
	}
}

// NewToolResultMessage creates the user message that answers a tool_use block.
func NewToolResultMessage(toolUseID, content string, isError bool) Message {
	return Message{
		Role: RoleUser,
		Content: ContentBlocks{ToolResultBlock{
			ToolUseID: toolUseID,
			Content:   content,
			IsError:   isError,
		}},
	}
}

// Text returns the concatenated text content from all text blocks in the message.
func (m Message) Text() string {
	return m.Content.Text()
}
