package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
)

// funcTool is a minimal Tool backed by a function.
type funcTool struct {
	name    string
	calls   int
	execute func(ctx context.Context, args json.RawMessage) (string, error)
}

func (t *funcTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        t.name,
		Description: "test tool",
		Schema:      map[string]interface{}{"type": "object"},
	}
}

func (t *funcTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	t.calls++
	if t.execute == nil {
		return "ok", nil
	}
	return t.execute(ctx, args)
}

func (t *funcTool) Preview(args json.RawMessage) string {
	return ""
}

func newTestEngine(p Provider, tools ...Tool) *Engine {
	registry := NewToolRegistry()
	for _, tool := range tools {
		registry.Register(tool)
	}
	return NewEngine(p, registry)
}

func testRequest(e *Engine) Request {
	return Request{
		Messages: []Message{
			SystemText("You are a test assistant."),
			UserText("Do the thing."),
		},
		Tools:      e.Tools().AllSpecs(),
		ToolChoice: ToolChoice{Mode: ToolChoiceRequired},
	}
}

// drainStream consumes a stream, returning accumulated text, all events,
// and the terminal error (nil on clean EOF).
func drainStream(t *testing.T, stream Stream) (string, []Event, error) {
	t.Helper()
	var text string
	var events []Event
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			return text, events, nil
		}
		if err != nil {
			return text, events, err
		}
		events = append(events, event)
		if event.Type == EventTextDelta {
			text += event.Text
		}
	}
}

// toolResults extracts the tool results from a recorded message history.
func toolResults(msgs []Message) []*ToolResult {
	var results []*ToolResult
	for _, msg := range msgs {
		if msg.Role != RoleTool {
			continue
		}
		for _, part := range msg.Parts {
			if part.Type == PartToolResult && part.ToolResult != nil {
				results = append(results, part.ToolResult)
			}
		}
	}
	return results
}

func TestEngineTextOnlyTermination(t *testing.T) {
	p := NewMockProvider("test")
	p.AddTextResponse("Hello there")

	engine := newTestEngine(p, &funcTool{name: "noop"})
	stream, err := engine.Stream(context.Background(), testRequest(engine))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	text, events, err := drainStream(t, stream)
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}
	if text != "Hello there" {
		t.Errorf("text = %q, want %q", text, "Hello there")
	}
	if events[len(events)-1].Type != EventDone {
		t.Errorf("last event = %v, want done", events[len(events)-1].Type)
	}
	if len(p.Requests) != 1 {
		t.Errorf("requests = %d, want 1", len(p.Requests))
	}
}

func TestEngineSingleToolRound(t *testing.T) {
	p := NewMockProvider("test")
	p.AddToolCall("call_1", "lookup", `{"key":"alpha"}`)
	p.AddTextResponse("DONE")

	tool := &funcTool{name: "lookup", execute: func(ctx context.Context, args json.RawMessage) (string, error) {
		return "value for alpha", nil
	}}
	engine := newTestEngine(p, tool)

	stream, err := engine.Stream(context.Background(), testRequest(engine))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	text, events, err := drainStream(t, stream)
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}
	if text != "DONE" {
		t.Errorf("text = %q, want %q", text, "DONE")
	}
	if tool.calls != 1 {
		t.Errorf("tool executed %d times, want 1", tool.calls)
	}
	if len(p.Requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(p.Requests))
	}

	// The follow-up request carries the assistant tool call plus exactly
	// one tool message with the matching id.
	second := p.Requests[1].Messages
	if len(second) != 4 {
		t.Fatalf("second request has %d messages, want 4", len(second))
	}
	if second[2].Role != RoleAssistant {
		t.Errorf("message 2 role = %q, want assistant", second[2].Role)
	}
	results := toolResults(second)
	if len(results) != 1 {
		t.Fatalf("tool results = %d, want 1", len(results))
	}
	if results[0].ID != "call_1" || results[0].Content != "value for alpha" || results[0].IsError {
		t.Errorf("unexpected tool result: %+v", results[0])
	}

	// The forced first round relaxes to auto on the follow-up.
	if p.Requests[0].ToolChoice.Mode != ToolChoiceRequired {
		t.Errorf("first round tool choice = %q, want required", p.Requests[0].ToolChoice.Mode)
	}
	if p.Requests[1].ToolChoice.Mode != ToolChoiceAuto {
		t.Errorf("second round tool choice = %q, want auto", p.Requests[1].ToolChoice.Mode)
	}

	var sawStart, sawEnd bool
	for _, ev := range events {
		if ev.Type == EventToolExecStart && ev.ToolName == "lookup" {
			sawStart = true
		}
		if ev.Type == EventToolExecEnd && ev.ToolSuccess {
			sawEnd = true
		}
	}
	if !sawStart || !sawEnd {
		t.Errorf("missing tool exec events: start=%v end=%v", sawStart, sawEnd)
	}
}

func TestEngineMalformedToolCall(t *testing.T) {
	p := NewMockProvider("test")
	p.AddTurn(MockTurn{
		ToolCalls: []ToolCall{{Arguments: []byte(`{"key":"alpha"}`)}},
	})
	p.AddTextResponse("DONE")

	tool := &funcTool{name: "lookup"}
	engine := newTestEngine(p, tool)

	stream, _ := engine.Stream(context.Background(), testRequest(engine))
	defer stream.Close()
	if _, _, err := drainStream(t, stream); err != nil {
		t.Fatalf("drain error = %v", err)
	}

	if tool.calls != 0 {
		t.Errorf("tool executed %d times, want 0", tool.calls)
	}
	results := toolResults(p.Requests[1].Messages)
	if len(results) != 1 {
		t.Fatalf("tool results = %d, want 1", len(results))
	}
	if results[0].ID != "unknown_id_for_index_0" {
		t.Errorf("result id = %q, want unknown_id_for_index_0", results[0].ID)
	}
	if results[0].Content != malformedToolCallError {
		t.Errorf("result content = %q", results[0].Content)
	}
	if !results[0].IsError {
		t.Error("expected error result")
	}
}

func TestEngineBadJSONArguments(t *testing.T) {
	p := NewMockProvider("test")
	p.AddToolCall("call_1", "lookup", `{"key":`)
	p.AddTextResponse("DONE")

	tool := &funcTool{name: "lookup"}
	engine := newTestEngine(p, tool)

	stream, _ := engine.Stream(context.Background(), testRequest(engine))
	defer stream.Close()
	if _, _, err := drainStream(t, stream); err != nil {
		t.Fatalf("drain error = %v", err)
	}

	if tool.calls != 0 {
		t.Errorf("tool executed %d times, want 0", tool.calls)
	}
	results := toolResults(p.Requests[1].Messages)
	if len(results) != 1 {
		t.Fatalf("tool results = %d, want 1", len(results))
	}
	if results[0].ID != "call_1" {
		t.Errorf("result id = %q, want call_1", results[0].ID)
	}
	// The diagnostic includes the raw argument payload so the model can
	// see what it actually sent.
	if !strings.Contains(results[0].Content, `Arguments received: {"key":`) {
		t.Errorf("diagnostic missing raw payload: %q", results[0].Content)
	}
}

func TestEngineExecutorFailureIsRecoverable(t *testing.T) {
	p := NewMockProvider("test")
	p.AddToolCall("call_1", "lookup", `{"key":"alpha"}`)
	p.AddTextResponse("DONE")

	tool := &funcTool{name: "lookup", execute: func(ctx context.Context, args json.RawMessage) (string, error) {
		return "", errors.New("key not found")
	}}
	engine := newTestEngine(p, tool)

	stream, _ := engine.Stream(context.Background(), testRequest(engine))
	defer stream.Close()
	text, _, err := drainStream(t, stream)
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}
	if text != "DONE" {
		t.Errorf("text = %q, want DONE", text)
	}

	results := toolResults(p.Requests[1].Messages)
	if len(results) != 1 {
		t.Fatalf("tool results = %d, want 1", len(results))
	}
	if !results[0].IsError {
		t.Error("expected error result")
	}
	if !strings.Contains(results[0].Content, "key not found") ||
		!strings.Contains(results[0].Content, "retry") {
		t.Errorf("unexpected failure content: %q", results[0].Content)
	}
}

func TestEngineUnknownToolName(t *testing.T) {
	p := NewMockProvider("test")
	p.AddToolCall("call_1", "no_such_tool", `{}`)
	p.AddTextResponse("DONE")

	engine := newTestEngine(p, &funcTool{name: "lookup"})

	stream, _ := engine.Stream(context.Background(), testRequest(engine))
	defer stream.Close()
	if _, _, err := drainStream(t, stream); err != nil {
		t.Fatalf("drain error = %v", err)
	}

	results := toolResults(p.Requests[1].Messages)
	if len(results) != 1 || !results[0].IsError {
		t.Fatalf("expected one error result, got %+v", results)
	}
	if !strings.Contains(results[0].Content, "not registered") {
		t.Errorf("unexpected content: %q", results[0].Content)
	}
}

func TestEngineEmptyRound(t *testing.T) {
	p := NewMockProvider("test")
	p.AddTurn(MockTurn{Usage: &Usage{PromptTokens: 3, CompletionTokens: 0, TotalTokens: 3}})

	engine := newTestEngine(p, &funcTool{name: "lookup"})

	stream, _ := engine.Stream(context.Background(), testRequest(engine))
	defer stream.Close()
	text, events, err := drainStream(t, stream)
	if err != nil {
		t.Fatalf("empty round must not be fatal, got %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
	if events[len(events)-1].Type != EventDone {
		t.Errorf("last event = %v, want done", events[len(events)-1].Type)
	}
	if len(p.Requests) != 1 {
		t.Errorf("requests = %d, want 1", len(p.Requests))
	}
}

func TestEngineMaxRoundsExceeded(t *testing.T) {
	p := NewMockProvider("test")
	p.AddToolCall("call_1", "lookup", `{}`)
	p.AddToolCall("call_2", "lookup", `{}`)

	tool := &funcTool{name: "lookup"}
	engine := newTestEngine(p, tool)

	req := testRequest(engine)
	req.MaxRounds = 2

	stream, _ := engine.Stream(context.Background(), req)
	defer stream.Close()
	_, _, err := drainStream(t, stream)
	if err == nil || !strings.Contains(err.Error(), "max rounds") {
		t.Fatalf("expected max rounds error, got %v", err)
	}
	if tool.calls != 1 {
		t.Errorf("tool executed %d times, want 1", tool.calls)
	}
}

func TestEngineTransportErrorIsFatal(t *testing.T) {
	transportErr := errors.New("connection reset by peer")
	p := NewMockProvider("test")
	p.AddError(transportErr)

	engine := newTestEngine(p, &funcTool{name: "lookup"})

	stream, _ := engine.Stream(context.Background(), testRequest(engine))
	defer stream.Close()
	_, _, err := drainStream(t, stream)
	if !errors.Is(err, transportErr) {
		t.Fatalf("got error %v, want %v", err, transportErr)
	}
}

func TestEngineCancellationDiscardsInFlightRound(t *testing.T) {
	p := NewMockProvider("test")
	p.AddTurn(MockTurn{
		ToolCalls: []ToolCall{
			{ID: "call_1", Name: "lookup", Arguments: []byte(`{}`)},
			{ID: "call_2", Name: "lookup", Arguments: []byte(`{}`)},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	tool := &funcTool{name: "lookup", execute: func(ctx context.Context, args json.RawMessage) (string, error) {
		cancel()
		return "ok", nil
	}}
	engine := newTestEngine(p, tool)

	stream, _ := engine.Stream(ctx, testRequest(engine))
	defer stream.Close()
	_, _, err := drainStream(t, stream)
	if err != nil {
		t.Fatalf("cancellation must not surface as error, got %v", err)
	}

	// The first call ran and cancelled; the second is never dispatched
	// and no follow-up round is requested.
	if tool.calls != 1 {
		t.Errorf("tool executed %d times, want 1", tool.calls)
	}
	if len(p.Requests) != 1 {
		t.Errorf("requests = %d, want 1", len(p.Requests))
	}
}

func TestEngineUsageAccumulation(t *testing.T) {
	p := NewMockProvider("test")
	p.AddTurn(MockTurn{
		ToolCalls: []ToolCall{{ID: "call_1", Name: "lookup", Arguments: []byte(`{}`)}},
		Usage:     &Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	})
	p.AddTurn(MockTurn{
		Text:  "DONE",
		Usage: &Usage{PromptTokens: 150, CompletionTokens: 10, TotalTokens: 160},
	})

	engine := newTestEngine(p, &funcTool{name: "lookup"})

	stream, _ := engine.Stream(context.Background(), testRequest(engine))
	defer stream.Close()
	if _, _, err := drainStream(t, stream); err != nil {
		t.Fatalf("drain error = %v", err)
	}

	usage := engine.Usage()
	if usage.PromptTokens != 250 || usage.CompletionTokens != 30 || usage.TotalTokens != 280 {
		t.Errorf("usage = %+v, want 250/30/280", usage)
	}
	if engine.Rounds() != 2 {
		t.Errorf("rounds = %d, want 2", engine.Rounds())
	}
}

func TestEngineTerminalHistoryReplay(t *testing.T) {
	// A history that already reached its terminal state (resolved tool
	// exchange plus a final assistant answer) is resent as-is. One more
	// run must finish in a single round with no new tool calls.
	p := NewMockProvider("test")
	p.AddTextResponse("Answered above.")

	tool := &funcTool{name: "lookup"}
	engine := newTestEngine(p, tool)

	req := testRequest(engine)
	req.ToolChoice = ToolChoice{Mode: ToolChoiceAuto}
	req.Messages = append(req.Messages,
		Message{Role: RoleAssistant, Parts: []Part{
			{Type: PartToolCall, ToolCall: &ToolCall{ID: "call_0", Name: "lookup", Arguments: []byte(`{}`)}},
		}},
		ToolResultMessage("call_0", "lookup", "value for alpha"),
		AssistantText("The answer, from the earlier run."),
	)
	seeded := len(req.Messages)

	stream, err := engine.Stream(context.Background(), req)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	_, events, err := drainStream(t, stream)
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}
	if len(p.Requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(p.Requests))
	}
	if events[len(events)-1].Type != EventDone {
		t.Errorf("last event = %v, want done", events[len(events)-1].Type)
	}
	if tool.calls != 0 {
		t.Errorf("tool executed %d times, want 0", tool.calls)
	}
	// The prior exchange travels to the provider untouched.
	if len(p.Requests[0].Messages) != seeded {
		t.Errorf("provider saw %d messages, want %d", len(p.Requests[0].Messages), seeded)
	}
	if p.Requests[0].Messages[seeded-1].Role != RoleAssistant {
		t.Errorf("last seeded message role = %q, want assistant", p.Requests[0].Messages[seeded-1].Role)
	}
}

func TestEnginePassThroughWithoutTools(t *testing.T) {
	p := NewMockProvider("test")
	p.AddTextResponse("plain answer")

	engine := NewEngine(p, nil)
	stream, err := engine.Stream(context.Background(), Request{
		Messages: []Message{UserText("hi")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	text, _, err := drainStream(t, stream)
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}
	if text != "plain answer" {
		t.Errorf("text = %q, want %q", text, "plain answer")
	}
	if engine.Usage().TotalTokens != 15 {
		t.Errorf("usage total = %d, want 15", engine.Usage().TotalTokens)
	}
}

func TestEngineRun(t *testing.T) {
	p := NewMockProvider("test")
	p.AddToolCall("call_1", "lookup", `{}`)
	p.AddTextResponse("final answer")

	engine := newTestEngine(p, &funcTool{name: "lookup"})
	got, err := engine.Run(context.Background(), testRequest(engine))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "final answer" {
		t.Errorf("Run() = %q, want %q", got, "final answer")
	}
}

func TestBuildAssistantMessage(t *testing.T) {
	calls := []ToolCall{{ID: "call_1", Name: "lookup", Arguments: []byte(`{}`)}}

	msg := buildAssistantMessage("  \n", calls)
	if len(msg.Parts) != 1 || msg.Parts[0].Type != PartToolCall {
		t.Errorf("blank text should yield tool-call parts only, got %+v", msg.Parts)
	}

	msg = buildAssistantMessage("thinking...", calls)
	if len(msg.Parts) != 2 || msg.Parts[0].Type != PartText {
		t.Errorf("expected text part followed by tool call, got %+v", msg.Parts)
	}
	if got := collectTextParts(msg.Parts); got != "thinking..." {
		t.Errorf("text = %q, want %q", got, "thinking...")
	}
}
