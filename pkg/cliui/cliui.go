// Package cliui provides reusable terminal UI helpers for claudekit commands:
// styles, a spinner step indicator and markdown rendering.
package cliui

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/papercomputeco/claudekit/pkg/llm"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	KeyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	NameStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	DimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ValueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	HeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	WarnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	UserPrompt     = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	AssistantLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("claude> ")
	ThinkingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

// spinnerFrames is the braille dot spinner.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	// Run spinner animation in background
	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	// Clear the spinner line and print final result
	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// FormatUsage formats token counts for display, e.g.
// "in 1,204 · out 88 · cache read 1,024".
func FormatUsage(u llm.Usage) string {
	s := fmt.Sprintf("in %s · out %s", FormatCount(u.InputTokens), FormatCount(u.OutputTokens))
	if u.CacheReadInputTokens > 0 {
		s += " · cache read " + FormatCount(u.CacheReadInputTokens)
	}
	if u.CacheCreationInputTokens > 0 {
		s += " · cache write " + FormatCount(u.CacheCreationInputTokens)
	}
	return s
}

// FormatCount formats n with thousands separators.
func FormatCount(n int) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	s := strconv.Itoa(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the content is returned unchanged along with the error.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
