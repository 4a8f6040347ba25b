package policycache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"

	"github.com/palisade-dev/palisade-go/internal/telemetry"
)

type fakeFetcher struct {
	calls atomic.Int64
	doc   map[string]any
	err   error
}

func (f *fakeFetcher) FetchPolicy(ctx context.Context, toolName string) (map[string]any, error) {
	f.calls.Add(1)
	return f.doc, f.err
}

func TestGetMissingSchedulesRefresh(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetcher := &fakeFetcher{doc: map[string]any{
		"toolName": "read_file",
		"mode":     "deterministic",
		"version":  float64(1),
	}}
	c := New(fetcher, 50*time.Millisecond, 200*time.Millisecond, nil)

	if _, ok := c.Get("read_file"); ok {
		t.Fatalf("expected a cache miss on first Get")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if fetcher.calls.Load() > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if fetcher.calls.Load() == 0 {
		t.Fatalf("expected FetchPolicy to be called by background refresh")
	}

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Get("read_file"); ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected a fresh hit once the background refresh completes")
}

func TestGetNeverReturnsExpiredEntry(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetcher := &fakeFetcher{doc: map[string]any{"toolName": "x"}}
	c := New(fetcher, time.Millisecond, 2*time.Millisecond, nil)

	c.Get("x") // schedule first refresh
	time.Sleep(20 * time.Millisecond)
	c.Get("x") // install, then let it expire
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("x"); ok {
		t.Fatalf("expected the cache to never return an expired entry")
	}
}

func TestInvalidateAllClearsEntries(t *testing.T) {
	fetcher := &fakeFetcher{doc: nil} // no policy comes back; entries stay empty
	c := New(fetcher, time.Second, time.Minute, nil)
	c.Invalidate("anything")
	c.InvalidateAll()
	if _, ok := c.Get("anything"); ok {
		t.Fatalf("expected a miss after InvalidateAll")
	}
}

func TestGetRecordsCacheMissMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	fetcher := &fakeFetcher{doc: nil}
	c := New(fetcher, time.Second, time.Minute, nil)
	c.SetMetrics(metrics)

	c.Get("unknown_tool")

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() != "palisade_policy_cache_lookups_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "state" && lp.GetValue() == "miss" {
					if m.GetCounter().GetValue() != 1 {
						t.Errorf("expected 1 miss observation, got %v", m.GetCounter().GetValue())
					}
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatal("expected a policy_cache_lookups_total{state=\"miss\"} sample")
	}
}
