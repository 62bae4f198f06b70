// Package tokens estimates the input token count of requests without
// calling the API. Estimates run about four bytes per token and are meant
// for budgeting, not billing; use client.CountTokens for exact numbers.
package tokens

import (
	"fmt"

	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/models"
)

const (
	bytesPerToken = 4

	requestOverhead = 10
	messageOverhead = 4
	textOverhead    = 2
	toolUseOverhead = 4
	toolDefOverhead = 10

	// imageTokens approximates a ~1 megapixel image.
	imageTokens = 1600
)

// EstimateText estimates the tokens of s.
func EstimateText(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + bytesPerToken - 1) / bytesPerToken
}

// EstimateMessage estimates one message including its framing.
func EstimateMessage(m llm.Message) int {
	total := messageOverhead
	for _, b := range m.Content {
		total += EstimateBlock(b)
	}
	return total
}

// EstimateBlock estimates one content block.
func EstimateBlock(b llm.ContentBlock) int {
	switch b := b.(type) {
	case llm.TextBlock:
		return textOverhead + EstimateText(b.Text)
	case llm.ToolUseBlock:
		return toolUseOverhead + EstimateText(b.Name) + EstimateText(string(b.Input))
	case llm.ToolResultBlock:
		return toolUseOverhead + EstimateText(b.ToolUseID) + EstimateText(b.Content)
	case llm.ThinkingBlock:
		return textOverhead + EstimateText(b.Thinking)
	case llm.RedactedThinkingBlock:
		return textOverhead + EstimateText(b.Data)
	case llm.SearchResultBlock:
		total := textOverhead + EstimateText(b.Title)
		for _, t := range b.Content {
			total += EstimateText(t.Text)
		}
		return total
	case llm.ImageBlock:
		return imageTokens
	case llm.DocumentBlock:
		return textOverhead + EstimateText(b.Source.Data) + EstimateText(b.Title) + EstimateText(b.Context)
	default:
		return textOverhead
	}
}

// EstimateTool estimates a tool definition.
func EstimateTool(t llm.Tool) int {
	return toolDefOverhead + EstimateText(t.Name) + EstimateText(t.Description) + EstimateText(string(t.InputSchema))
}

// EstimateRequest estimates the input tokens of req.
func EstimateRequest(req *llm.MessagesRequest) int {
	total := requestOverhead
	if req.System != nil {
		total += EstimateText(req.System.String())
	}
	for _, m := range req.Messages {
		total += EstimateMessage(m)
	}
	for _, t := range req.Tools {
		total += EstimateTool(t)
	}
	return total
}

// FitsContext returns an error when the estimated input plus max_tokens
// exceeds the model's context window.
func FitsContext(req *llm.MessagesRequest, m models.Model, extended bool) error {
	input := EstimateRequest(req)
	limit := m.ContextLimit(extended)

	if total := input + req.MaxTokens; total > limit {
		return fmt.Errorf("request would use ~%d tokens (input %d, output %d) but %s allows %d",
			total, input, req.MaxTokens, m.Name, limit)
	}
	return nil
}
