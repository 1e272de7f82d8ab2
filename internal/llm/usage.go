package llm

import "sync"

// UsageTotals accumulates token usage across all rounds of an engine's
// lifetime. Counters are monotonically non-decreasing and reset only by
// constructing a new instance.
type UsageTotals struct {
	mu         sync.Mutex
	prompt     int
	completion int
	total      int
}

func NewUsageTotals() *UsageTotals {
	return &UsageTotals{}
}

// Record adds one round's deltas to the running totals. Negative deltas
// are ignored; endpoints report non-negative counts.
func (t *UsageTotals) Record(prompt, completion, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prompt > 0 {
		t.prompt += prompt
	}
	if completion > 0 {
		t.completion += completion
	}
	if total > 0 {
		t.total += total
	}
}

// Snapshot returns the current totals.
func (t *UsageTotals) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Usage{
		PromptTokens:     t.prompt,
		CompletionTokens: t.completion,
		TotalTokens:      t.total,
	}
}
