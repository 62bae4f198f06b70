// Package models is a static table of Claude models and their limits.
package models

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/claudekit/pkg/llm"
)

// Family groups models of the same tier.
type Family string

const (
	FamilyOpus   Family = "opus"
	FamilySonnet Family = "sonnet"
	FamilyHaiku  Family = "haiku"
)

// Beta headers unlocking model features.
const (
	BetaContext1M = "context-1m-2025-08-07"
	BetaEffort    = "effort-2025-11-24"
)

// Model describes one API model id.
type Model struct {
	Name    string
	Family  Family
	Version string

	// ID is the Messages API model id.
	ID string

	// BedrockID and VertexID are the ids on those platforms, if any.
	BedrockID string
	VertexID  string

	ContextWindow int

	// ExtendedContextWindow is the window with BetaContext1M, or 0.
	ExtendedContextWindow int

	MaxOutputTokens int

	Vision           bool
	Tools            bool
	Caching          bool
	ExtendedThinking bool
	Effort           bool

	// Prices in USD per million tokens.
	InputPrice  float64
	OutputPrice float64

	Description string
}

var all = []Model{
	{
		Name: "Claude Sonnet 4.5", Family: FamilySonnet, Version: "2025-09-29",
		ID:        "claude-sonnet-4-5-20250929",
		BedrockID: "anthropic.claude-sonnet-4-5-20250929-v1:0", VertexID: "claude-sonnet-4-5@20250929",
		ContextWindow: 200_000, ExtendedContextWindow: 1_000_000, MaxOutputTokens: 64_000,
		Vision: true, Tools: true, Caching: true, ExtendedThinking: true,
		InputPrice: 3, OutputPrice: 15,
		Description: "Smart model for complex agents and coding",
	},
	{
		Name: "Claude Haiku 4.5", Family: FamilyHaiku, Version: "2025-10-01",
		ID:        "claude-haiku-4-5-20251001",
		BedrockID: "anthropic.claude-haiku-4-5-20251001-v1:0", VertexID: "claude-haiku-4-5@20251001",
		ContextWindow: 200_000, MaxOutputTokens: 64_000,
		Vision: true, Tools: true, Caching: true, ExtendedThinking: true,
		InputPrice: 1, OutputPrice: 5,
		Description: "Fastest model with near-frontier intelligence",
	},
	{
		Name: "Claude Opus 4.5", Family: FamilyOpus, Version: "2025-11-01",
		ID:        "claude-opus-4-5-20251101",
		BedrockID: "anthropic.claude-opus-4-5-20251101-v1:0", VertexID: "claude-opus-4-5@20251101",
		ContextWindow: 200_000, MaxOutputTokens: 64_000,
		Vision: true, Tools: true, Caching: true, ExtendedThinking: true, Effort: true,
		InputPrice: 5, OutputPrice: 25,
		Description: "Maximum intelligence with practical performance",
	},
	{
		Name: "Claude Opus 4.1", Family: FamilyOpus, Version: "2025-08-05",
		ID:        "claude-opus-4-1-20250805",
		BedrockID: "anthropic.claude-opus-4-1-20250805-v1:0", VertexID: "claude-opus-4-1@20250805",
		ContextWindow: 200_000, MaxOutputTokens: 32_000,
		Vision: true, Tools: true, Caching: true, ExtendedThinking: true,
		InputPrice: 15, OutputPrice: 75,
		Description: "Previous generation powerful model",
	},
	{
		Name: "Claude Sonnet 4", Family: FamilySonnet, Version: "2025-05-14",
		ID:        "claude-sonnet-4-20250514",
		BedrockID: "anthropic.claude-sonnet-4-20250514-v1:0", VertexID: "claude-sonnet-4@20250514",
		ContextWindow: 200_000, ExtendedContextWindow: 1_000_000, MaxOutputTokens: 64_000,
		Vision: true, Tools: true, Caching: true, ExtendedThinking: true,
		InputPrice: 3, OutputPrice: 15,
		Description: "Previous generation balanced model",
	},
	{
		Name: "Claude Sonnet 3.7", Family: FamilySonnet, Version: "2025-02-19",
		ID:        "claude-3-7-sonnet-20250219",
		BedrockID: "anthropic.claude-3-7-sonnet-20250219-v1:0", VertexID: "claude-3-7-sonnet@20250219",
		ContextWindow: 200_000, MaxOutputTokens: 64_000,
		Vision: true, Tools: true, Caching: true, ExtendedThinking: true,
		InputPrice: 3, OutputPrice: 15,
		Description: "Claude 3.7 balanced model",
	},
	{
		Name: "Claude Opus 4", Family: FamilyOpus, Version: "2025-05-14",
		ID:        "claude-opus-4-20250514",
		BedrockID: "anthropic.claude-opus-4-20250514-v1:0", VertexID: "claude-opus-4@20250514",
		ContextWindow: 200_000, MaxOutputTokens: 32_000,
		Vision: true, Tools: true, Caching: true, ExtendedThinking: true,
		InputPrice: 15, OutputPrice: 75,
		Description: "Claude 4 powerful model",
	},
	{
		Name: "Claude Haiku 3.5", Family: FamilyHaiku, Version: "2024-10-22",
		ID:        "claude-3-5-haiku-20241022",
		BedrockID: "anthropic.claude-3-5-haiku-20241022-v1:0", VertexID: "claude-3-5-haiku@20241022",
		ContextWindow: 200_000, MaxOutputTokens: 8_192,
		Vision: true, Tools: true, Caching: true,
		InputPrice: 0.80, OutputPrice: 4,
		Description: "Fast and efficient model",
	},
	{
		Name: "Claude Haiku 3", Family: FamilyHaiku, Version: "2024-03-07",
		ID:        "claude-3-haiku-20240307",
		BedrockID: "anthropic.claude-3-haiku-20240307-v1:0", VertexID: "claude-3-haiku@20240307",
		ContextWindow: 200_000, MaxOutputTokens: 4_096,
		Vision: true, Tools: true, Caching: true,
		InputPrice: 0.25, OutputPrice: 1.25,
		Description: "Original fast model",
	},
}

// Default is the model used when none is configured.
const Default = "claude-sonnet-4-5-20250929"

// bedrockPrefixes are the cross-region inference prefixes.
var bedrockPrefixes = []string{"global.", "us.", "eu.", "ap."}

// All returns every known model, latest first.
func All() []Model {
	return append([]Model(nil), all...)
}

// Lookup finds a model by its API, Bedrock (any region prefix) or Vertex id.
func Lookup(id string) (Model, bool) {
	for _, m := range all {
		if m.ID == id || m.VertexID == id || m.BedrockID == id {
			return m, true
		}
	}

	for _, p := range bedrockPrefixes {
		if base, ok := strings.CutPrefix(id, p); ok {
			for _, m := range all {
				if m.BedrockID == base {
					return m, true
				}
			}
		}
	}

	return Model{}, false
}

// BedrockIDForRegion returns the Bedrock id with a region prefix such as
// "global" or "eu". An empty region returns the standard regional id.
func (m Model) BedrockIDForRegion(region string) string {
	if m.BedrockID == "" || region == "" {
		return m.BedrockID
	}
	return region + "." + m.BedrockID
}

// ContextLimit returns the usable context window.
func (m Model) ContextLimit(extended bool) int {
	if extended && m.ExtendedContextWindow > 0 {
		return m.ExtendedContextWindow
	}
	return m.ContextWindow
}

// ValidateRequest checks req against the model's limits and capabilities.
func (m Model) ValidateRequest(req *llm.MessagesRequest, extended bool) error {
	if req.MaxTokens > m.MaxOutputTokens {
		return fmt.Errorf("max_tokens %d exceeds %s limit of %d", req.MaxTokens, m.Name, m.MaxOutputTokens)
	}
	if extended && m.ExtendedContextWindow == 0 {
		return fmt.Errorf("%s does not support extended context", m.Name)
	}
	if req.Thinking != nil && req.Thinking.Type == llm.ThinkingEnabled && !m.ExtendedThinking {
		return fmt.Errorf("%s does not support extended thinking", m.Name)
	}
	if req.OutputConfig != nil && req.OutputConfig.Effort != "" && !m.Effort {
		return fmt.Errorf("%s does not support the effort parameter", m.Name)
	}
	if len(req.Tools) > 0 && !m.Tools {
		return fmt.Errorf("%s does not support tools", m.Name)
	}
	return nil
}

// EstimateCost returns the USD price of the given token counts.
func (m Model) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1_000_000*m.InputPrice +
		float64(outputTokens)/1_000_000*m.OutputPrice
}

// UsageCost prices a response's usage. Cache reads are billed at a tenth
// of the input price and cache writes at 1.25 times.
func (m Model) UsageCost(u llm.Usage) float64 {
	return m.EstimateCost(u.InputTokens, u.OutputTokens) +
		float64(u.CacheReadInputTokens)/1_000_000*m.InputPrice*0.1 +
		float64(u.CacheCreationInputTokens)/1_000_000*m.InputPrice*1.25
}
