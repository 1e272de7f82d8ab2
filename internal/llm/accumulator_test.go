package llm

import (
	"testing"
)

func TestAccumulatorSingleCall(t *testing.T) {
	acc := newToolCallAccumulator(false)
	acc.Apply(ToolCallFragment{Index: 0, ID: "call_1", Name: "get_file_content"})
	acc.Apply(ToolCallFragment{Index: 0, Arguments: `{"path":`})
	acc.Apply(ToolCallFragment{Index: 0, Arguments: `"main.go"}`})

	calls := acc.Finalize()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Name != "get_file_content" {
		t.Errorf("unexpected call: %+v", calls[0])
	}
	if string(calls[0].Arguments) != `{"path":"main.go"}` {
		t.Errorf("arguments = %q", string(calls[0].Arguments))
	}
}

func TestAccumulatorInterleavedFragments(t *testing.T) {
	// Fragments for two calls arrive interleaved, with the higher index
	// seen first. Finalize must return index order regardless.
	acc := newToolCallAccumulator(false)
	acc.Apply(ToolCallFragment{Index: 1, ID: "call_b", Name: "save_ctx"})
	acc.Apply(ToolCallFragment{Index: 0, ID: "call_a", Name: "get_tree_structure"})
	acc.Apply(ToolCallFragment{Index: 1, Arguments: `{"content":`})
	acc.Apply(ToolCallFragment{Index: 0, Arguments: `{}`})
	acc.Apply(ToolCallFragment{Index: 1, Arguments: `"x"}`})

	if acc.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", acc.Len())
	}

	calls := acc.Finalize()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].ID != "call_a" || calls[1].ID != "call_b" {
		t.Errorf("calls out of index order: %q, %q", calls[0].ID, calls[1].ID)
	}
	if string(calls[1].Arguments) != `{"content":"x"}` {
		t.Errorf("arguments = %q", string(calls[1].Arguments))
	}
}

func TestAccumulatorLastWriteWins(t *testing.T) {
	acc := newToolCallAccumulator(false)
	acc.Apply(ToolCallFragment{Index: 0, ID: "call_old", Name: "first"})
	acc.Apply(ToolCallFragment{Index: 0, ID: "call_new", Name: "second"})
	// Empty values never clobber earlier ones.
	acc.Apply(ToolCallFragment{Index: 0, Arguments: "{}"})

	calls := acc.Finalize()
	if calls[0].ID != "call_new" {
		t.Errorf("id = %q, want call_new", calls[0].ID)
	}
	if calls[0].Name != "second" {
		t.Errorf("name = %q, want second", calls[0].Name)
	}
}

func TestAccumulatorIncompleteCall(t *testing.T) {
	// A call whose id and name never arrive still finalizes; the
	// executor turns it into a diagnostic message downstream.
	acc := newToolCallAccumulator(false)
	acc.Apply(ToolCallFragment{Index: 0, Arguments: `{"orphaned":true}`})

	calls := acc.Finalize()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].ID != "" || calls[0].Name != "" {
		t.Errorf("expected empty id/name, got %+v", calls[0])
	}
	if string(calls[0].Arguments) != `{"orphaned":true}` {
		t.Errorf("arguments = %q", string(calls[0].Arguments))
	}
}

func TestAccumulatorEmpty(t *testing.T) {
	acc := newToolCallAccumulator(false)
	if acc.Len() != 0 {
		t.Errorf("Len() = %d, want 0", acc.Len())
	}
	if calls := acc.Finalize(); calls != nil {
		t.Errorf("Finalize() = %v, want nil", calls)
	}
}

func TestAccumulatorSparseIndices(t *testing.T) {
	acc := newToolCallAccumulator(false)
	acc.Apply(ToolCallFragment{Index: 5, ID: "call_5", Name: "b", Arguments: "{}"})
	acc.Apply(ToolCallFragment{Index: 2, ID: "call_2", Name: "a", Arguments: "{}"})

	calls := acc.Finalize()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].ID != "call_2" || calls[1].ID != "call_5" {
		t.Errorf("sparse indices out of order: %q, %q", calls[0].ID, calls[1].ID)
	}
}
