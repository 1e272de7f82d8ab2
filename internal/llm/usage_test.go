package llm

import (
	"sync"
	"testing"
)

func TestUsageTotalsRecord(t *testing.T) {
	totals := NewUsageTotals()
	totals.Record(100, 20, 120)
	totals.Record(50, 10, 60)

	got := totals.Snapshot()
	if got.PromptTokens != 150 || got.CompletionTokens != 30 || got.TotalTokens != 180 {
		t.Errorf("snapshot = %+v, want 150/30/180", got)
	}
}

func TestUsageTotalsIgnoresNegatives(t *testing.T) {
	totals := NewUsageTotals()
	totals.Record(100, 20, 120)
	totals.Record(-5, -1, -6)

	got := totals.Snapshot()
	if got.PromptTokens != 100 || got.CompletionTokens != 20 || got.TotalTokens != 120 {
		t.Errorf("snapshot = %+v, want unchanged 100/20/120", got)
	}
}

func TestUsageTotalsConcurrent(t *testing.T) {
	totals := NewUsageTotals()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			totals.Record(1, 1, 2)
		}()
	}
	wg.Wait()

	got := totals.Snapshot()
	if got.PromptTokens != 50 || got.TotalTokens != 100 {
		t.Errorf("snapshot = %+v, want 50/50/100", got)
	}
}
