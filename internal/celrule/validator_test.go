package celrule

import (
	"context"
	"strings"
	"testing"

	"github.com/palisade-dev/palisade-go/internal/engine"
)

func TestNewValidatorDeniesOnMatch(t *testing.T) {
	v, err := NewValidator("block-large-amount", `arguments["amount"] > 1000.0`, engine.DecisionDeny)
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	result, err := v.Validate(context.Background(), engine.ValidationContext{
		ToolName:  "transfer",
		Arguments: map[string]any{"amount": 5000.0},
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Decision != engine.DecisionDeny {
		t.Fatalf("decision = %v, want deny", result.Decision)
	}
}

func TestNewValidatorAllowsOnNoMatch(t *testing.T) {
	v, err := NewValidator("block-large-amount", `arguments["amount"] > 1000.0`, engine.DecisionDeny)
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	result, err := v.Validate(context.Background(), engine.ValidationContext{
		ToolName:  "transfer",
		Arguments: map[string]any{"amount": 10.0},
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Decision != engine.DecisionAllow {
		t.Fatalf("decision = %v, want allow", result.Decision)
	}
}

func TestNewValidatorRejectsUncompilableExpression(t *testing.T) {
	_, err := NewValidator("broken", `arguments[`, engine.DecisionDeny)
	if err == nil {
		t.Fatal("NewValidator() = nil error, want a compile error")
	}
}

func TestNewValidatorRejectsOversizeExpression(t *testing.T) {
	expr := "tool_name == '" + strings.Repeat("a", maxExpressionLength) + "'"
	_, err := NewValidator("too-long", expr, engine.DecisionDeny)
	if err == nil {
		t.Fatal("NewValidator() = nil error, want a length error")
	}
}

func TestNewValidatorHonoursToolFilterOption(t *testing.T) {
	v, err := NewValidator("scoped", "true", engine.DecisionDeny, WithToolFilter("transfer"), WithPriority(5))
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	if v.Priority != 5 {
		t.Fatalf("Priority = %d, want 5", v.Priority)
	}
	if !v.ToolFilter["transfer"] || v.ToolFilter["other"] {
		t.Fatalf("ToolFilter = %+v, want only transfer", v.ToolFilter)
	}
}
