package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockTurn scripts one provider round for a MockProvider.
type MockTurn struct {
	Text      string
	ToolCalls []ToolCall
	Usage     *Usage
	Err       error
	Delay     time.Duration
}

// MockProvider replays scripted turns, one per Stream call. It records
// every request it receives so tests can assert on conversation history.
type MockProvider struct {
	name string

	mu       sync.Mutex
	turns    []MockTurn
	turn     int
	Requests []Request
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (p *MockProvider) Name() string {
	return p.name
}

// AddTurn appends a scripted turn.
func (p *MockProvider) AddTurn(turn MockTurn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turn)
}

// AddTextResponse appends a text-only turn with nominal usage.
func (p *MockProvider) AddTextResponse(text string) {
	p.AddTurn(MockTurn{
		Text:  text,
		Usage: &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
}

// AddToolCall appends a turn requesting a single tool call.
func (p *MockProvider) AddToolCall(id, name, arguments string) {
	p.AddTurn(MockTurn{
		ToolCalls: []ToolCall{{ID: id, Name: name, Arguments: []byte(arguments)}},
		Usage:     &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
}

// AddError appends a turn that fails with err.
func (p *MockProvider) AddError(err error) {
	p.AddTurn(MockTurn{Err: err})
}

// Reset clears recorded requests and rewinds to the first turn.
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turn = 0
	p.Requests = nil
}

// CurrentTurn returns the index of the next turn to play.
func (p *MockProvider) CurrentTurn() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.turn
}

func (p *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	p.mu.Lock()
	if p.turn >= len(p.turns) {
		p.mu.Unlock()
		return nil, fmt.Errorf("mock: no turn configured for request %d", len(p.Requests)+1)
	}
	turn := p.turns[p.turn]
	p.turn++
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		if turn.Delay > 0 {
			select {
			case <-time.After(turn.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if turn.Err != nil {
			return turn.Err
		}
		for _, chunk := range chunkText(turn.Text, 8) {
			events <- Event{Type: EventTextDelta, Text: chunk}
		}
		for i := range turn.ToolCalls {
			call := turn.ToolCalls[i]
			events <- Event{Type: EventToolCall, Tool: &call}
		}
		if turn.Usage != nil {
			events <- Event{Type: EventUsage, Use: turn.Usage}
		}
		events <- Event{Type: EventDone}
		return nil
	}), nil
}

// chunkText splits text into fixed-size pieces so scripted turns stream
// like a real endpoint instead of arriving whole.
func chunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	for len(text) > size {
		chunks = append(chunks, text[:size])
		text = text[size:]
	}
	return append(chunks, text)
}
