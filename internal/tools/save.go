package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/snapctx/snapctx/internal/llm"
)

// ContextSink accumulates the snippets a run saves. It is safe for
// concurrent use so a future parallel executor doesn't corrupt it.
type ContextSink struct {
	mu    sync.Mutex
	b     strings.Builder
	count int
}

func NewContextSink() *ContextSink {
	return &ContextSink{}
}

// Add appends one snippet and returns the snippet count so far.
func (s *ContextSink) Add(note, content string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if s.b.Len() > 0 {
		s.b.WriteString("\n---\n\n")
	}
	if note = strings.TrimSpace(note); note != "" {
		s.b.WriteString("## " + note + "\n\n")
	}
	s.b.WriteString(strings.TrimRight(content, "\n"))
	s.b.WriteString("\n")
	return s.count
}

// String returns everything saved so far.
func (s *ContextSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// Count returns the number of snippets saved.
func (s *ContextSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// SaveContextTool implements save_ctx, writing into a shared sink.
type SaveContextTool struct {
	sink *ContextSink
}

func NewSaveContextTool(sink *ContextSink) *SaveContextTool {
	return &SaveContextTool{sink: sink}
}

// SaveContextArgs are the arguments for save_ctx.
type SaveContextArgs struct {
	Content string `json:"content"`
	Note    string `json:"note,omitempty"`
}

func (t *SaveContextTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        SaveToolName,
		Description: "Save a snippet of context relevant to the question. Include a short note naming the source file and why it matters.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"content": map[string]interface{}{
					"type":        "string",
					"description": "The verbatim content to save",
				},
				"note": map[string]interface{}{
					"type":        "string",
					"description": "Short note: source file and why this snippet is relevant",
				},
			},
			"required":             []string{"content"},
			"additionalProperties": false,
		},
	}
}

func (t *SaveContextTool) Preview(args json.RawMessage) string {
	var a SaveContextArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	if a.Note != "" {
		return a.Note
	}
	return fmt.Sprintf("%d bytes", len(a.Content))
}

func (t *SaveContextTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a SaveContextArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Content) == "" {
		return "", fmt.Errorf("content is required")
	}
	n := t.sink.Add(a.Note, a.Content)
	return fmt.Sprintf("Saved snippet %d (%d bytes).", n, len(a.Content)), nil
}
