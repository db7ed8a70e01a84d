package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/flint/cli/tui"
	"github.com/pithecene-io/flint/types"
)

// Console writes operator-facing messages: progress lines, the power-cycle
// prompt and the final outcome. Results go through Renderer instead.
type Console struct {
	out   io.Writer
	color bool
	quiet bool
}

// NewConsole writes to w, styled when w is a terminal and noColor is unset.
// quiet suppresses progress lines; prompts and failures are always shown.
func NewConsole(w io.Writer, noColor, quiet bool) *Console {
	if w == nil {
		w = os.Stderr
	}
	return &Console{out: w, color: !noColor && IsTerminal(w), quiet: quiet}
}

// NewConsoleWithWriter creates a console for an arbitrary writer.
func NewConsoleWithWriter(out io.Writer, color, quiet bool) *Console {
	return &Console{out: out, color: color, quiet: quiet}
}

func (c *Console) paint(style lipgloss.Style, s string) string {
	if !c.color {
		return s
	}
	return style.Render(s)
}

// Step prints a progress line.
func (c *Console) Step(format string, args ...any) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out, c.paint(tui.MutedStyle, "• "+fmt.Sprintf(format, args...)))
}

// Prompt asks the operator to act.
func (c *Console) Prompt(format string, args ...any) {
	fmt.Fprintln(c.out, c.paint(tui.PromptStyle, ">> "+fmt.Sprintf(format, args...)))
}

// Success prints a completion line.
func (c *Console) Success(format string, args ...any) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out, c.paint(tui.SuccessStyle, "✓ "+fmt.Sprintf(format, args...)))
}

// Outcome prints a failed outcome with its captured tool output.
// Successful outcomes print nothing.
func (c *Console) Outcome(o types.Outcome) {
	if o.IsSuccess() {
		return
	}
	fmt.Fprintln(c.out, c.paint(tui.ErrorStyle, fmt.Sprintf("✗ %s: %s", o.Status, o.Message)))
	if o.Detail == "" {
		return
	}
	for line := range strings.SplitSeq(o.Detail, "\n") {
		fmt.Fprintln(c.out, c.paint(tui.MutedStyle, "    "+line))
	}
}
