package stream

// Content delta type discriminators.
const (
	DeltaTypeText      = "text_delta"
	DeltaTypeInputJSON = "input_json_delta"
	DeltaTypeThinking  = "thinking_delta"
	DeltaTypeSignature = "signature_delta"
)

// ContentDelta is an incremental fragment of a content block. The set of
// implementations is closed: TextDelta, InputJSONDelta, ThinkingDelta and
// SignatureDelta.
type ContentDelta interface {
	// Type returns the wire discriminator of the delta.
	Type() string

	isContentDelta()
}

// TextDelta appends Text to a text block.
type TextDelta struct {
	Text string `json:"text"`
}

// InputJSONDelta is a fragment of a tool_use block's JSON input. Fragments
// for the same index must be concatenated before the result is parsed.
type InputJSONDelta struct {
	PartialJSON string `json:"partial_json"`
}

// ThinkingDelta appends to a thinking block.
type ThinkingDelta struct {
	Thinking string `json:"thinking"`
}

// SignatureDelta carries the signature of a thinking block.
type SignatureDelta struct {
	Signature string `json:"signature"`
}

func (TextDelta) Type() string      { return DeltaTypeText }
func (InputJSONDelta) Type() string { return DeltaTypeInputJSON }
func (ThinkingDelta) Type() string  { return DeltaTypeThinking }
func (SignatureDelta) Type() string { return DeltaTypeSignature }

func (TextDelta) isContentDelta()      {}
func (InputJSONDelta) isContentDelta() {}
func (ThinkingDelta) isContentDelta()  {}
func (SignatureDelta) isContentDelta() {}
