package llm

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ToolCallFragment is one incremental unit of tool-call data from a
// streamed response. A fragment may set the id or name, or append argument
// text, for exactly one index. Indices are stable within one round and are
// the sole aggregation key.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// toolCallAccumulator reassembles interleaved tool-call fragments into
// complete calls. It is scoped to a single round: indices are round-local,
// so a fresh accumulator is created per request/stream cycle and discarded
// at round end.
type toolCallAccumulator struct {
	byIndex map[int]*toolCallState
	order   []int
	debug   bool
}

type toolCallState struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallAccumulator(debug bool) *toolCallAccumulator {
	return &toolCallAccumulator{byIndex: make(map[int]*toolCallState), debug: debug}
}

// Apply merges one fragment. Id and name take the last non-empty write,
// matching the endpoint's incremental-assignment semantics; argument text
// is always appended, never replaced.
func (a *toolCallAccumulator) Apply(frag ToolCallFragment) {
	state, ok := a.byIndex[frag.Index]
	if !ok {
		state = &toolCallState{}
		a.byIndex[frag.Index] = state
		a.order = append(a.order, frag.Index)
	}
	if frag.ID != "" {
		if a.debug && state.id != "" && state.id != frag.ID {
			fmt.Fprintf(os.Stderr, "snapctx: tool call %d id overwritten: %q -> %q\n", frag.Index, state.id, frag.ID)
		}
		state.id = frag.ID
	}
	if frag.Name != "" {
		if a.debug && state.name != "" && state.name != frag.Name {
			fmt.Fprintf(os.Stderr, "snapctx: tool call %d name overwritten: %q -> %q\n", frag.Index, state.name, frag.Name)
		}
		state.name = frag.Name
	}
	if frag.Arguments != "" {
		state.args.WriteString(frag.Arguments)
	}
}

// Len reports how many distinct calls are in flight.
func (a *toolCallAccumulator) Len() int {
	return len(a.byIndex)
}

// Finalize returns the completed calls ordered by ascending index,
// regardless of fragment arrival order. Execution downstream must match
// the model's intended call order, not network arrival order.
func (a *toolCallAccumulator) Finalize() []ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	sort.Ints(a.order)
	calls := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		state := a.byIndex[idx]
		if state == nil {
			continue
		}
		calls = append(calls, ToolCall{
			ID:        state.id,
			Name:      state.name,
			Arguments: json.RawMessage(state.args.String()),
		})
	}
	return calls
}
