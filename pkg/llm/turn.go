package llm

// ConversationTurn is one request together with the reply it produced.
// Response is nil when the turn failed before a message was assembled.
type ConversationTurn struct {
	Request  *MessagesRequest  `json:"request"`
	Response *MessagesResponse `json:"response"`
}

// Model returns the model that answered, or the requested one when there
// is no reply.
func (t ConversationTurn) Model() string {
	if t.Response != nil && t.Response.Model != "" {
		return t.Response.Model
	}
	if t.Request != nil {
		return t.Request.Model
	}
	return ""
}

// Usage returns the token usage of the reply.
func (t ConversationTurn) Usage() Usage {
	if t.Response == nil {
		return Usage{}
	}
	return t.Response.Usage
}
