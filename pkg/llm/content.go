package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Content block type discriminators.
const (
	BlockTypeText             = "text"
	BlockTypeImage            = "image"
	BlockTypeDocument         = "document"
	BlockTypeToolUse          = "tool_use"
	BlockTypeToolResult       = "tool_result"
	BlockTypeThinking         = "thinking"
	BlockTypeRedactedThinking = "redacted_thinking"
	BlockTypeSearchResult     = "search_result"
)

// ContentBlock is one unit of message content. The set of implementations is
// closed: TextBlock, ImageBlock, DocumentBlock, ToolUseBlock, ToolResultBlock,
// ThinkingBlock, RedactedThinkingBlock and SearchResultBlock.
//
// Every implementation marshals with its "type" discriminator, and
// UnmarshalContentBlock reverses the encoding.
type ContentBlock interface {
	// Type returns the wire discriminator of the block.
	Type() string

	isContentBlock()
}

// CacheControl marks a block as a prompt caching breakpoint.
type CacheControl struct {
	Type string `json:"type"`
}

// Ephemeral returns the only cache control type the API accepts.
func Ephemeral() *CacheControl {
	return &CacheControl{Type: "ephemeral"}
}

// Source describes where image or document bytes come from. Type is one of
// "base64", "url", "file" or "text"; only the fields for that type are set.
type Source struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
	FileID    string `json:"file_id,omitempty"`
}

// FileSource references a file uploaded through the Files API.
func FileSource(fileID string) Source {
	return Source{Type: "file", FileID: fileID}
}

// CitationConfig toggles citations for documents and search results.
type CitationConfig struct {
	Enabled bool `json:"enabled"`
}

// Citation is a reference from generated text back to provided content.
type Citation struct {
	Type              string `json:"type"`
	Source            string `json:"source,omitempty"`
	Title             string `json:"title,omitempty"`
	CitedText         string `json:"cited_text"`
	SearchResultIndex int    `json:"search_result_index"`
	StartBlockIndex   int    `json:"start_block_index"`
	EndBlockIndex     int    `json:"end_block_index"`
}

// TextBlock is plain text content.
type TextBlock struct {
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
	Citations    []Citation    `json:"citations,omitempty"`
}

// ImageBlock is an image input.
type ImageBlock struct {
	Source       Source        `json:"source"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// DocumentBlock is a PDF or plain text document input.
type DocumentBlock struct {
	Source       Source          `json:"source"`
	Title        string          `json:"title,omitempty"`
	Context      string          `json:"context,omitempty"`
	Citations    *CitationConfig `json:"citations,omitempty"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

// ToolUseBlock is a tool invocation requested by the assistant. Input holds
// the raw JSON arguments.
type ToolUseBlock struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Input        json.RawMessage `json:"input"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

// ToolResultBlock returns the outcome of a tool invocation to the model.
type ToolResultBlock struct {
	ToolUseID    string        `json:"tool_use_id"`
	Content      string        `json:"content,omitempty"`
	IsError      bool          `json:"is_error,omitempty"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// ThinkingBlock carries extended thinking output.
type ThinkingBlock struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

// RedactedThinkingBlock is encrypted thinking that must be passed back
// unmodified in later turns.
type RedactedThinkingBlock struct {
	Data string `json:"data"`
}

// SearchResultBlock supplies a search result with automatic citations.
type SearchResultBlock struct {
	Source       string          `json:"source"`
	Title        string          `json:"title"`
	Content      []TextBlock     `json:"content"`
	Citations    *CitationConfig `json:"citations,omitempty"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

func (TextBlock) Type() string             { return BlockTypeText }
func (ImageBlock) Type() string            { return BlockTypeImage }
func (DocumentBlock) Type() string         { return BlockTypeDocument }
func (ToolUseBlock) Type() string          { return BlockTypeToolUse }
func (ToolResultBlock) Type() string       { return BlockTypeToolResult }
func (ThinkingBlock) Type() string         { return BlockTypeThinking }
func (RedactedThinkingBlock) Type() string { return BlockTypeRedactedThinking }
func (SearchResultBlock) Type() string     { return BlockTypeSearchResult }

func (TextBlock) isContentBlock()             {}
func (ImageBlock) isContentBlock()            {}
func (DocumentBlock) isContentBlock()         {}
func (ToolUseBlock) isContentBlock()          {}
func (ToolResultBlock) isContentBlock()       {}
func (ThinkingBlock) isContentBlock()         {}
func (RedactedThinkingBlock) isContentBlock() {}
func (SearchResultBlock) isContentBlock()     {}

// marshalTagged encodes v with a leading "type" field. v must be a type
// without a MarshalJSON method.
func marshalTagged(typ string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	tag, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+len(tag)+10)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// MarshalJSON encodes the block with its "type" discriminator.
func (b TextBlock) MarshalJSON() ([]byte, error) {
	type plain TextBlock
	return marshalTagged(b.Type(), plain(b))
}

// MarshalJSON encodes the block with its "type" discriminator.
func (b ImageBlock) MarshalJSON() ([]byte, error) {
	type plain ImageBlock
	return marshalTagged(b.Type(), plain(b))
}

// MarshalJSON encodes the block with its "type" discriminator.
func (b DocumentBlock) MarshalJSON() ([]byte, error) {
	type plain DocumentBlock
	return marshalTagged(b.Type(), plain(b))
}

// MarshalJSON encodes the block with its "type" discriminator. A nil Input
// is sent as an empty object.
func (b ToolUseBlock) MarshalJSON() ([]byte, error) {
	type plain ToolUseBlock
	if len(b.Input) == 0 {
		b.Input = json.RawMessage("{}")
	}
	return marshalTagged(b.Type(), plain(b))
}

// MarshalJSON encodes the block with its "type" discriminator.
func (b ToolResultBlock) MarshalJSON() ([]byte, error) {
	type plain ToolResultBlock
	return marshalTagged(b.Type(), plain(b))
}

// MarshalJSON encodes the block with its "type" discriminator.
func (b ThinkingBlock) MarshalJSON() ([]byte, error) {
	type plain ThinkingBlock
	return marshalTagged(b.Type(), plain(b))
}

// MarshalJSON encodes the block with its "type" discriminator.
func (b RedactedThinkingBlock) MarshalJSON() ([]byte, error) {
	type plain RedactedThinkingBlock
	return marshalTagged(b.Type(), plain(b))
}

// MarshalJSON encodes the block with its "type" discriminator.
func (b SearchResultBlock) MarshalJSON() ([]byte, error) {
	type plain SearchResultBlock
	return marshalTagged(b.Type(), plain(b))
}

// ErrUnknownBlockType is returned when a content block carries a "type"
// this package does not model.
var ErrUnknownBlockType = errors.New("unknown content block type")

// typeTag reads only the discriminator of a tagged JSON object.
type typeTag struct {
	Type string `json:"type"`
}

// UnmarshalContentBlock decodes a single tagged content block. The "type"
// field is read first and selects the concrete variant.
func UnmarshalContentBlock(data []byte) (ContentBlock, error) {
	var tag typeTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decoding content block: %w", err)
	}

	switch tag.Type {
	case BlockTypeText:
		return decodeBlock[TextBlock](data)
	case BlockTypeImage:
		return decodeBlock[ImageBlock](data)
	case BlockTypeDocument:
		return decodeBlock[DocumentBlock](data)
	case BlockTypeToolUse:
		return decodeBlock[ToolUseBlock](data)
	case BlockTypeToolResult:
		return decodeBlock[ToolResultBlock](data)
	case BlockTypeThinking:
		return decodeBlock[ThinkingBlock](data)
	case BlockTypeRedactedThinking:
		return decodeBlock[RedactedThinkingBlock](data)
	case BlockTypeSearchResult:
		return decodeBlock[SearchResultBlock](data)
	case "":
		return nil, fmt.Errorf("decoding content block: missing type: %w", ErrUnknownBlockType)
	default:
		return nil, fmt.Errorf("decoding content block %q: %w", tag.Type, ErrUnknownBlockType)
	}
}

func decodeBlock[T ContentBlock](data []byte) (ContentBlock, error) {
	var b T
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding %s block: %w", b.Type(), err)
	}
	return b, nil
}

// ContentBlocks is an ordered list of content blocks that knows how to
// decode its tagged elements. A bare JSON string decodes as one text block.
type ContentBlocks []ContentBlock

// UnmarshalJSON implements json.Unmarshaler.
func (c *ContentBlocks) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = ContentBlocks{TextBlock{Text: text}}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding content: %w", err)
	}

	blocks := make(ContentBlocks, 0, len(raw))
	for _, r := range raw {
		b, err := UnmarshalContentBlock(r)
		if err != nil {
			return err
		}
		blocks = append(blocks, b)
	}

	*c = blocks
	return nil
}

// Text returns the concatenation of every text block.
func (c ContentBlocks) Text() string {
	var sb strings.Builder
	for _, b := range c {
		if t, ok := b.(TextBlock); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// ToolUses returns every tool_use block in order.
func (c ContentBlocks) ToolUses() []ToolUseBlock {
	var out []ToolUseBlock
	for _, b := range c {
		if tu, ok := b.(ToolUseBlock); ok {
			out = append(out, tu)
		}
	}
	return out
}
