package palisade

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/palisade-dev/palisade-go/internal/config"
	"github.com/palisade-dev/palisade-go/internal/engine"
)

type echoTool struct{}

func (echoTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return args["value"], nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(
		WithBaseURL(srv.URL),
		WithMode(config.ModeStrict),
		WithResponseCache(0, 0),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	_, err := New(WithBaseURL(""))
	if err == nil {
		t.Fatal("New() = nil error, want a validation error for an empty base URL")
	}
}

func TestWrapAndCallAllow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/policies/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"decision": "allow"})
	})

	tool, err := c.Wrap("echo", echoTool{})
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	out, err := tool.Call(context.Background(), map[string]any{"value": "hi"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if out != "hi" {
		t.Fatalf("out = %v, want hi", out)
	}

	stats := c.GetHistoryStats()
	if stats.TotalCalls != 1 || stats.AllowedCalls != 1 {
		t.Fatalf("stats = %+v, want 1 total/1 allowed", stats)
	}
}

func TestWrapAndCallDeny(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/policies/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"decision": "deny", "reason": "blocked by policy"})
	})

	tool, err := c.Wrap("echo", echoTool{})
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	_, err = tool.Call(context.Background(), map[string]any{"value": "hi"})
	if !errors.Is(err, ErrToolCallDenied) {
		t.Fatalf("Call() error = %v, want ErrToolCallDenied", err)
	}

	var denied *ToolCallDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("errors.As() failed to extract *ToolCallDeniedError from %v", err)
	}
	if denied.ValidationResult.Reason != "blocked by policy" {
		t.Fatalf("reason = %q, want %q", denied.ValidationResult.Reason, "blocked by policy")
	}
}

func TestCheckMirrorsWrappedCallDecision(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/policies/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"decision": "allow"})
	})

	allowed, err := c.Check(context.Background(), "read_file", map[string]any{"path": "/tmp/x"})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !allowed {
		t.Fatal("Check() = false, want true")
	}
}

func TestLogModeRewritesDenyToAllow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/policies/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"decision": "deny", "reason": "would have been blocked"})
	}))
	t.Cleanup(srv.Close)

	c, err := New(WithBaseURL(srv.URL), WithMode(config.ModeLog), WithResponseCache(0, 0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tool, err := c.Wrap("echo", echoTool{})
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	out, err := tool.Call(context.Background(), map[string]any{"value": "hi"})
	if err != nil {
		t.Fatalf("Call() error = %v, want log-mode allow", err)
	}
	if out != "hi" {
		t.Fatalf("out = %v, want hi", out)
	}
}

func TestWithMetricsRegistererRecordsCacheLookup(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/policies/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"decision": "allow"})
	}))
	t.Cleanup(srv.Close)

	c, err := New(
		WithBaseURL(srv.URL),
		WithResponseCache(0, 0),
		WithMetricsRegisterer(reg),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tool, err := c.Wrap("echo", echoTool{})
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}
	if _, err := tool.Call(context.Background(), map[string]any{"value": "hi"}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var sawCacheLookup, sawValidatorDecision bool
	for _, mf := range families {
		switch mf.GetName() {
		case "palisade_policy_cache_lookups_total":
			sawCacheLookup = true
		case "palisade_validator_decisions_total":
			sawValidatorDecision = true
		}
	}
	if !sawCacheLookup {
		t.Fatal("expected WithMetricsRegisterer to wire the policy cache into the registry")
	}
	if !sawValidatorDecision {
		t.Fatal("expected WithMetricsRegisterer to wire the interceptor into the registry")
	}
}

func TestAddValidatorRunsAlongsideCloudValidator(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/policies/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"decision": "allow"})
	})
	c.AddValidator(engine.NamedValidator{
		Name:     "custom-deny",
		Priority: 10,
		Validate: func(ctx context.Context, vctx engine.ValidationContext) (engine.ValidationResult, error) {
			return engine.ValidationResult{Decision: engine.DecisionDeny, Reason: "custom rule"}, nil
		},
	})

	tool, err := c.Wrap("echo", echoTool{})
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	_, err = tool.Call(context.Background(), map[string]any{"value": "hi"})
	var denied *ToolCallDeniedError
	if !errors.As(err, &denied) || denied.ValidationResult.Reason != "custom rule" {
		t.Fatalf("expected denial by custom-deny, got %v", err)
	}
}

func TestNewCELValidatorDeniesMatchingCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/policies/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"decision": "allow"})
	})

	celValidator, err := NewCELValidator(
		"no-etc-writes",
		`arguments["path"].startsWith("/etc/")`,
		DecisionDeny,
		WithCELPriority(10),
		WithCELToolFilter("write_file"),
	)
	if err != nil {
		t.Fatalf("NewCELValidator() error = %v", err)
	}
	c.AddValidator(celValidator)

	tool, err := c.Wrap("write_file", echoTool{})
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	_, err = tool.Call(context.Background(), map[string]any{"value": "x", "path": "/etc/shadow"})
	var denied *ToolCallDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected denial by no-etc-writes, got %v", err)
	}

	out, err := tool.Call(context.Background(), map[string]any{"value": "x", "path": "/tmp/shadow"})
	if err != nil {
		t.Fatalf("Call() error = %v, want allow for a non-/etc/ path", err)
	}
	if out != "x" {
		t.Fatalf("out = %v, want x", out)
	}
}
