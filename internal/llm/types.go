package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider streams model output events for a request.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Stream yields events until io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Request represents one conversation run against a model endpoint.
type Request struct {
	Model      string
	Messages   []Message
	Tools      []ToolSpec
	ToolChoice ToolChoice
	Stop       []string
	// MaxRounds caps the number of request/stream cycles in the tool loop.
	// Zero means the default cap.
	MaxRounds int
	Debug     bool
}

// Role identifies a message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies a message content part.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// Message holds a role with structured parts. History is append-only:
// messages are never mutated once appended.
type Message struct {
	Role  Role
	Parts []Part
}

// Part represents a single content part.
type Part struct {
	Type       PartType
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// ToolSpec describes a callable tool. Schema is JSON-schema-shaped and is
// passed through verbatim to the model endpoint.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ToolChoiceMode controls tool selection behavior.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
)

// ToolChoice configures whether the model must call a tool.
type ToolChoice struct {
	Mode ToolChoiceMode
}

// ToolCall is a model-requested tool invocation, reconstructed from
// streamed fragments. Arguments holds the raw argument text, which may
// not be valid JSON.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult is the outcome of resolving one tool call.
type ToolResult struct {
	ID      string
	Name    string
	Content string
	IsError bool
}

// EventType describes streaming events.
type EventType string

const (
	EventTextDelta     EventType = "text_delta"
	EventToolCall      EventType = "tool_call"
	EventToolExecStart EventType = "tool_exec_start"
	EventToolExecEnd   EventType = "tool_exec_end"
	EventUsage         EventType = "usage"
	EventDone          EventType = "done"
	EventError         EventType = "error"
	EventRetry         EventType = "retry"
)

// Event represents a streamed output update.
type Event struct {
	Type        EventType
	Text        string
	Tool        *ToolCall
	ToolCallID  string
	ToolName    string
	ToolInfo    string
	ToolSuccess bool
	Use         *Usage
	Err         error

	// Retry progress, set on EventRetry
	RetryAttempt     int
	RetryMaxAttempts int
	RetryWaitSecs    float64
}

// Usage captures token usage reported by the endpoint for one round.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func SystemText(text string) Message {
	return Message{
		Role:  RoleSystem,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

func UserText(text string) Message {
	return Message{
		Role:  RoleUser,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

func AssistantText(text string) Message {
	return Message{
		Role:  RoleAssistant,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

// ToolResultMessage wraps a tool's output as a tool-role message tagged
// with the originating call id.
func ToolResultMessage(id, name, content string) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{{
			Type: PartToolResult,
			ToolResult: &ToolResult{
				ID:      id,
				Name:    name,
				Content: content,
			},
		}},
	}
}

// ToolErrorMessage creates a tool result message that indicates a failure.
// The error text is observed by the model on the next round so it can
// self-correct instead of failing the whole conversation.
func ToolErrorMessage(id, name, errorText string) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{{
			Type: PartToolResult,
			ToolResult: &ToolResult{
				ID:      id,
				Name:    name,
				Content: errorText,
				IsError: true,
			},
		}},
	}
}

func collectTextParts(parts []Part) string {
	var b strings.Builder
	for _, part := range parts {
		if part.Type == PartText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
