package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

const defaultMaxRounds = 20

// malformedToolCallError is sent back to the model when a reconstructed
// call is missing its id or name after aggregation.
const malformedToolCallError = "Error: Tool call information was incomplete (ID or name missing). Cannot execute."

// Engine orchestrates provider rounds and external tool execution. One
// engine instance owns one conversation's history and usage totals;
// concurrent conversations need independent instances.
type Engine struct {
	provider Provider
	tools    *ToolRegistry
	totals   *UsageTotals
	rounds   atomic.Int32
}

func NewEngine(provider Provider, tools *ToolRegistry) *Engine {
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Engine{
		provider: provider,
		tools:    tools,
		totals:   NewUsageTotals(),
	}
}

// RegisterTool adds a tool to the engine's registry.
func (e *Engine) RegisterTool(tool Tool) {
	e.tools.Register(tool)
}

// Tools returns the engine's tool registry.
func (e *Engine) Tools() *ToolRegistry {
	return e.tools
}

// Usage returns the token totals accumulated across all rounds so far.
func (e *Engine) Usage() Usage {
	return e.totals.Snapshot()
}

// Rounds returns how many rounds have been dispatched so far.
func (e *Engine) Rounds() int {
	return int(e.rounds.Load())
}

// Stream returns a stream of events, running the tool loop when the
// request carries tool specs.
func (e *Engine) Stream(ctx context.Context, req Request) (Stream, error) {
	if len(req.Tools) > 0 {
		return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
			return e.runLoop(ctx, req, events)
		}), nil
	}

	stream, err := e.provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &usageStream{inner: stream, totals: e.totals}, nil
}

// Run consumes the stream and returns the text content concatenated
// across all rounds. On a transport error the returned string holds
// whatever was received before the failure, best-effort.
func (e *Engine) Run(ctx context.Context, req Request) (string, error) {
	stream, err := e.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		switch event.Type {
		case EventTextDelta:
			b.WriteString(event.Text)
		case EventError:
			if event.Err != nil {
				return b.String(), event.Err
			}
		}
	}
}

// runLoop drives rounds until a round produces no tool calls (normal
// termination), a round is entirely empty (abnormal, non-fatal), the
// round cap is hit, or the context is canceled. History grows by one
// assistant message plus one tool message per resolved call each round;
// an aborted in-flight round appends nothing.
func (e *Engine) runLoop(ctx context.Context, req Request, events chan<- Event) error {
	maxRounds := req.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}

	for round := 0; ; round++ {
		if round > 0 {
			// Follow-up rounds must not force another tool call.
			req.ToolChoice = ToolChoice{Mode: ToolChoiceAuto}
		}

		if ctx.Err() != nil {
			events <- Event{Type: EventDone}
			return nil
		}

		stream, err := e.provider.Stream(ctx, req)
		if err != nil {
			return err
		}
		e.rounds.Add(1)

		var toolCalls []ToolCall
		var text strings.Builder
		for {
			event, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				stream.Close()
				return err
			}
			switch event.Type {
			case EventError:
				if event.Err != nil {
					stream.Close()
					return event.Err
				}
			case EventUsage:
				if event.Use != nil {
					e.totals.Record(event.Use.PromptTokens, event.Use.CompletionTokens, event.Use.TotalTokens)
					events <- event
				}
			case EventTextDelta:
				if event.Text != "" {
					text.WriteString(event.Text)
					events <- event
				}
			case EventToolCall:
				if event.Tool != nil {
					toolCalls = append(toolCalls, *event.Tool)
				}
			case EventDone:
				// Swallowed; the loop emits its own once terminal.
			default:
				events <- event
			}
		}
		stream.Close()

		hasContent := strings.TrimSpace(text.String()) != ""

		if !hasContent && len(toolCalls) == 0 {
			// Empty round: the model produced nothing to act on.
			// Content from prior rounds has already been streamed out.
			events <- Event{Type: EventDone}
			return nil
		}

		assistantMsg := buildAssistantMessage(text.String(), toolCalls)

		if len(toolCalls) == 0 {
			req.Messages = append(req.Messages, assistantMsg)
			events <- Event{Type: EventDone}
			return nil
		}

		if round == maxRounds-1 {
			return fmt.Errorf("conversation exceeded max rounds (%d)", maxRounds)
		}

		results, err := e.executeToolCalls(ctx, toolCalls, events, req.Debug)
		if err != nil {
			// Only cancellation interrupts execution; the in-flight
			// round is discarded rather than partially appended.
			events <- Event{Type: EventDone}
			return nil
		}

		req.Messages = append(req.Messages, assistantMsg)
		req.Messages = append(req.Messages, results...)
	}
}

// buildAssistantMessage creates an assistant message carrying the round's
// content (if non-blank) and tool calls. At least one of the two is
// present whenever this is called; the message keeps assistant call ids
// aligned with the tool-role replies the endpoint expects back.
func buildAssistantMessage(text string, toolCalls []ToolCall) Message {
	var parts []Part
	if strings.TrimSpace(text) != "" {
		parts = append(parts, Part{Type: PartText, Text: text})
	}
	for i := range toolCalls {
		call := toolCalls[i]
		parts = append(parts, Part{Type: PartToolCall, ToolCall: &call})
	}
	return Message{Role: RoleAssistant, Parts: parts}
}

// executeToolCalls resolves calls sequentially in aggregation order so
// tool messages land in history deterministically. Every call yields
// exactly one tool-role message regardless of which failure branch it
// takes. The only error returned is context cancellation, checked at
// each invocation boundary.
func (e *Engine) executeToolCalls(ctx context.Context, calls []ToolCall, events chan<- Event, debug bool) ([]Message, error) {
	results := make([]Message, 0, len(calls))
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, e.resolveToolCall(ctx, i, call, events, debug))
	}
	return results, nil
}

// resolveToolCall turns one reconstructed call into one tool-role message:
// a diagnostic for malformed records and unparsable arguments, an error
// report for executor failures, or the stringified tool output on success.
func (e *Engine) resolveToolCall(ctx context.Context, index int, call ToolCall, events chan<- Event, debug bool) Message {
	if call.ID == "" || call.Name == "" {
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("unknown_id_for_index_%d", index)
		}
		DebugToolResult(debug, id, call.Name, malformedToolCallError)
		return ToolErrorMessage(id, call.Name, malformedToolCallError)
	}

	var parsed interface{}
	if err := json.Unmarshal(call.Arguments, &parsed); err != nil {
		msg := fmt.Sprintf("Error: Tool %s arguments were not valid JSON. Error: %v. Arguments received: %s",
			call.Name, err, string(call.Arguments))
		DebugToolResult(debug, call.ID, call.Name, msg)
		return ToolErrorMessage(call.ID, call.Name, msg)
	}

	DebugToolCall(debug, call)
	info := e.toolPreview(call)
	events <- Event{Type: EventToolExecStart, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: info}

	tool, ok := e.tools.Get(call.Name)
	var output string
	var err error
	if !ok {
		err = fmt.Errorf("tool not registered: %s", call.Name)
	} else {
		output, err = tool.Execute(ctx, call.Arguments)
	}

	if err != nil {
		msg := fmt.Sprintf("Error: Tool %s execution failed. Details: %v\nAdjust the tool arguments and retry the call.",
			call.Name, err)
		DebugToolResult(debug, call.ID, call.Name, msg)
		events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: info, ToolSuccess: false}
		return ToolErrorMessage(call.ID, call.Name, msg)
	}

	DebugToolResult(debug, call.ID, call.Name, output)
	events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: info, ToolSuccess: true}
	return ToolResultMessage(call.ID, call.Name, output)
}

// toolPreview returns a short preview string for a tool call.
func (e *Engine) toolPreview(call ToolCall) string {
	if tool, ok := e.tools.Get(call.Name); ok {
		if preview := tool.Preview(call.Arguments); preview != "" {
			return preview
		}
	}
	return ""
}

// usageStream wraps a direct (non-loop) provider stream to feed the
// engine's usage totals.
type usageStream struct {
	inner  Stream
	totals *UsageTotals
}

func (s *usageStream) Recv() (Event, error) {
	event, err := s.inner.Recv()
	if err == nil && event.Type == EventUsage && event.Use != nil {
		s.totals.Record(event.Use.PromptTokens, event.Use.CompletionTokens, event.Use.TotalTokens)
	}
	return event, err
}

func (s *usageStream) Close() error {
	return s.inner.Close()
}
