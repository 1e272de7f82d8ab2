package llm

import (
	"fmt"
	"os"
)

const debugResultLimit = 2000

// DebugToolCall prints a tool invocation to stderr when debug is on.
func DebugToolCall(debug bool, call ToolCall) {
	if !debug {
		return
	}
	fmt.Fprintf(os.Stderr, "\n[debug] tool call %s (%s): %s\n", call.Name, call.ID, string(call.Arguments))
}

// DebugToolResult prints a tool result to stderr when debug is on,
// truncated so a large file dump doesn't flood the terminal.
func DebugToolResult(debug bool, id, name, content string) {
	if !debug {
		return
	}
	if len(content) > debugResultLimit {
		content = content[:debugResultLimit] + fmt.Sprintf("... (%d bytes total)", len(content))
	}
	fmt.Fprintf(os.Stderr, "[debug] tool result %s (%s): %s\n", name, id, content)
}

// DebugUsage prints accumulated usage totals to stderr when debug is on.
func DebugUsage(debug bool, usage Usage) {
	if !debug {
		return
	}
	fmt.Fprintf(os.Stderr, "[debug] tokens: prompt=%d completion=%d total=%d\n",
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
}
