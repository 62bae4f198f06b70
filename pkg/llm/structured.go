package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrToolNotUsed is returned by DecodeToolInput when the response holds no
// tool_use block for the requested tool.
var ErrToolNotUsed = errors.New("tool not used in response")

// JSONSchemaTool returns a tool whose input schema is the desired output
// shape. Paired with ForceTool it makes the model answer with JSON matching
// the schema.
func JSONSchemaTool(name, description string, schema any) (Tool, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return Tool{}, fmt.Errorf("encoding schema for tool %s: %w", name, err)
	}

	return Tool{
		Name:        name,
		Description: description,
		InputSchema: raw,
	}, nil
}

// ForceTool returns a tool choice that requires the named tool.
func ForceTool(name string) *ToolChoice {
	return &ToolChoice{Type: ToolChoiceTool, Name: name}
}

// DecodeToolInput unmarshals the input of the first tool_use block named
// name into v.
func DecodeToolInput(resp *MessagesResponse, name string, v any) error {
	for _, tu := range resp.ToolUses() {
		if tu.Name != name {
			continue
		}
		if err := json.Unmarshal(tu.Input, v); err != nil {
			return fmt.Errorf("decoding %s input: %w", name, err)
		}
		return nil
	}

	return fmt.Errorf("%s: %w", name, ErrToolNotUsed)
}
