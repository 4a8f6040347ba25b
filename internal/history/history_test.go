package history

import (
	"testing"

	"github.com/palisade-dev/palisade-go/internal/engine"
)

func entryFor(tool string, decision engine.Decision, latencyMs float64) Entry {
	return Entry{
		Call:      engine.ToolCall{Name: tool},
		Result:    engine.AggregatedResult{FinalResult: engine.ValidationResult{Decision: decision}},
		LatencyMs: latencyMs,
	}
}

func TestRecordAccumulatesStats(t *testing.T) {
	tr := New(10)
	tr.Record(entryFor("read_file", engine.DecisionAllow, 2))
	tr.Record(entryFor("read_file", engine.DecisionDeny, 4))
	tr.Record(entryFor("write_file", engine.DecisionAllow, 6))

	stats := tr.GetStats()
	if stats.TotalCalls != 3 {
		t.Fatalf("expected 3 total calls, got %d", stats.TotalCalls)
	}
	if stats.AllowedCalls != 2 || stats.DeniedCalls != 1 {
		t.Fatalf("expected 2 allowed / 1 denied, got %+v", stats)
	}
	if stats.CallsByTool["read_file"] != 2 || stats.CallsByTool["write_file"] != 1 {
		t.Fatalf("unexpected per-tool counts: %+v", stats.CallsByTool)
	}
	if stats.AverageLatencyMs != 4 {
		t.Fatalf("expected average latency 4, got %f", stats.AverageLatencyMs)
	}
}

func TestRecordEvictsOldestPastCapacity(t *testing.T) {
	tr := New(2)
	tr.Record(entryFor("a", engine.DecisionAllow, 1))
	tr.Record(entryFor("b", engine.DecisionAllow, 1))
	tr.Record(entryFor("c", engine.DecisionAllow, 1))

	recent := tr.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected ring capped at 2 entries, got %d", len(recent))
	}
	if recent[0].Call.Name != "b" || recent[1].Call.Name != "c" {
		t.Fatalf("expected [b, c] after eviction, got [%s, %s]", recent[0].Call.Name, recent[1].Call.Name)
	}
}

func TestClearResetsEverything(t *testing.T) {
	tr := New(5)
	tr.Record(entryFor("a", engine.DecisionDeny, 3))
	tr.Clear()

	stats := tr.GetStats()
	if stats.TotalCalls != 0 || len(stats.CallsByTool) != 0 || stats.AverageLatencyMs != 0 {
		t.Fatalf("expected a zeroed snapshot after Clear, got %+v", stats)
	}
	if len(tr.Recent()) != 0 {
		t.Fatalf("expected an empty ring after Clear")
	}
}

func TestGetStatsReflectsRingAfterEviction(t *testing.T) {
	tr := New(2)
	tr.Record(entryFor("a", engine.DecisionDeny, 10))
	tr.Record(entryFor("b", engine.DecisionAllow, 2))
	tr.Record(entryFor("c", engine.DecisionAllow, 4))

	stats := tr.GetStats()
	if stats.TotalCalls != 2 {
		t.Fatalf("expected stats to reflect only the 2 live entries, got total=%d", stats.TotalCalls)
	}
	if stats.AllowedCalls != 2 || stats.DeniedCalls != 0 {
		t.Fatalf("expected the evicted deny to no longer count, got %+v", stats)
	}
	if stats.CallsByTool["a"] != 0 {
		t.Fatalf("expected evicted tool %q to have no count, got %+v", "a", stats.CallsByTool)
	}
	if stats.CallsByTool["b"] != 1 || stats.CallsByTool["c"] != 1 {
		t.Fatalf("unexpected per-tool counts: %+v", stats.CallsByTool)
	}
	if stats.AverageLatencyMs != 3 {
		t.Fatalf("expected average latency over [b,c] = 3, got %f", stats.AverageLatencyMs)
	}
}

func TestRecentPreservesInsertionOrderBeforeWraparound(t *testing.T) {
	tr := New(5)
	tr.Record(entryFor("a", engine.DecisionAllow, 1))
	tr.Record(entryFor("b", engine.DecisionAllow, 1))

	recent := tr.Recent()
	if len(recent) != 2 || recent[0].Call.Name != "a" || recent[1].Call.Name != "b" {
		t.Fatalf("expected [a, b], got %+v", recent)
	}
}
