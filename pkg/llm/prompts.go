package llm

import (
	"fmt"
	"slices"
	"strings"
)

// Prebuilt system prompts.
const (
	HelpfulAssistantPrompt = "You are a helpful, harmless, and honest assistant. You provide clear, " +
		"accurate, and concise responses to user queries."

	CodingAssistantPrompt = "You are an expert programming assistant. You provide clear explanations, " +
		"write clean idiomatic code, and follow best practices. You help with debugging, code review, " +
		"and architecture decisions."

	ResearchAssistantPrompt = "You are a helpful research assistant. When answering questions, always " +
		"cite your sources using the provided search results. Be accurate and indicate when information " +
		"is not available in the provided sources."

	ExtractionAssistantPrompt = "You are a data extraction assistant. Extract structured information " +
		"from the provided text and return it in the requested JSON format. Be precise and only extract " +
		"information that is explicitly stated."

	// ParallelToolUsePrompt asks the model to batch independent tool calls
	// into one turn. Append it with WithParallelTools.
	ParallelToolUsePrompt = `<use_parallel_tool_calls>
For maximum efficiency, whenever you perform multiple independent operations, invoke all relevant
tools simultaneously rather than sequentially. Prioritize calling tools in parallel whenever possible.
For example, when reading 3 files, run 3 tool calls in parallel to read all 3 files into context at
the same time. When running multiple read-only commands, always run all of the commands in parallel.
Err on the side of maximizing parallel tool calls rather than running too many tools sequentially.
</use_parallel_tool_calls>`
)

// PromptRefPrefix marks a system prompt value that names a prebuilt prompt,
// as in "@coding". A doubled prefix escapes a literal leading "@".
const PromptRefPrefix = "@"

var prompts = map[string]string{
	"assistant":  HelpfulAssistantPrompt,
	"coding":     CodingAssistantPrompt,
	"agent":      WithParallelTools(CodingAssistantPrompt),
	"research":   ResearchAssistantPrompt,
	"extraction": ExtractionAssistantPrompt,
}

// WithParallelTools appends the parallel tool use guidance to base.
func WithParallelTools(base string) string {
	return base + "\n\n" + ParallelToolUsePrompt
}

// LookupPrompt returns the prebuilt prompt registered under name.
func LookupPrompt(name string) (string, bool) {
	p, ok := prompts[name]
	return p, ok
}

// PromptNames returns the names of the prebuilt prompts, sorted.
func PromptNames() []string {
	names := make([]string, 0, len(prompts))
	for name := range prompts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ResolveSystem expands a system prompt setting. "@name" is replaced by the
// prebuilt prompt of that name, "@@text" becomes the literal "@text" and
// anything else is returned unchanged.
func ResolveSystem(value string) (string, error) {
	ref, ok := strings.CutPrefix(value, PromptRefPrefix)
	if !ok {
		return value, nil
	}
	if strings.HasPrefix(ref, PromptRefPrefix) {
		return ref, nil
	}

	p, ok := LookupPrompt(ref)
	if !ok {
		return "", fmt.Errorf("unknown system prompt %q (known: %s)", ref, strings.Join(PromptNames(), ", "))
	}
	return p, nil
}
