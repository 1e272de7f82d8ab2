package ui

import (
	"fmt"
	"io"
	"time"
)

// Activity prints tool progress lines during a collection run. Output
// goes to stderr so stdout stays clean for the collected context.
type Activity struct {
	out    io.Writer
	styles *Styles
	starts map[string]time.Time
}

func NewActivity(out io.Writer, styles *Styles) *Activity {
	return &Activity{
		out:    out,
		styles: styles,
		starts: make(map[string]time.Time),
	}
}

// ToolStart records and prints the start of a tool invocation.
func (a *Activity) ToolStart(id, name, info string) {
	a.starts[id] = time.Now()
	line := a.styles.Highlighted.Render(name)
	if info != "" {
		line += " " + a.styles.Muted.Render(Truncate(info, 80))
	}
	fmt.Fprintf(a.out, "  %s\n", line)
}

// ToolEnd prints the outcome of a tool invocation with its duration.
func (a *Activity) ToolEnd(id, name string, success bool) {
	elapsed := ""
	if start, ok := a.starts[id]; ok {
		elapsed = fmt.Sprintf(" (%s)", time.Since(start).Round(time.Millisecond))
		delete(a.starts, id)
	}
	fmt.Fprintf(a.out, "  %s%s\n", a.styles.FormatResult(success, name), a.styles.Muted.Render(elapsed))
}

// Stats prints a run summary line.
func (a *Activity) Stats(rounds, snippets, promptTokens, completionTokens, totalTokens int) {
	fmt.Fprintf(a.out, "%s\n", a.styles.Muted.Render(fmt.Sprintf(
		"rounds: %d  snippets: %d  tokens: %d prompt / %d completion / %d total",
		rounds, snippets, promptTokens, completionTokens, totalTokens)))
}
