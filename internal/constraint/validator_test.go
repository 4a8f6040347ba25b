package constraint

import "testing"

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }
func b(v bool) *bool         { return &v }

func TestValidateAllow(t *testing.T) {
	constraints := []Argument{
		{ArgumentName: "amount", Enabled: true, Minimum: f64(0), Maximum: f64(1000)},
	}
	args := map[string]any{"amount": 500.0}

	result := Validate(args, constraints)
	if result.Decision != DecisionAllow {
		t.Fatalf("decision = %v, want allow", result.Decision)
	}
	if len(result.Validations) != 1 || result.Validations[0].Status != StatusPass {
		t.Fatalf("validations = %+v, want one pass entry", result.Validations)
	}
}

func TestValidateDenyGreaterThan(t *testing.T) {
	constraints := []Argument{
		{ArgumentName: "val", Enabled: true, GreaterThan: f64(10)},
	}
	args := map[string]any{"val": 10.0}

	result := Validate(args, constraints)
	if result.Decision != DecisionDeny {
		t.Fatalf("decision = %v, want deny", result.Decision)
	}
	if result.FailedArgument != "val" {
		t.Fatalf("failed_argument = %q, want val", result.FailedArgument)
	}
	if len(result.Validations) != 1 {
		t.Fatalf("validations = %+v, want exactly one entry", result.Validations)
	}
}

func TestValidateRequiredMissing(t *testing.T) {
	req := true
	constraints := []Argument{{ArgumentName: "token", Enabled: true, Required: &req}}

	result := Validate(map[string]any{}, constraints)
	if result.Decision != DecisionDeny || result.FailedArgument != "token" {
		t.Fatalf("got %+v, want deny on missing required token", result)
	}
}

func TestValidateNotNullPresentNull(t *testing.T) {
	nn := true
	constraints := []Argument{{ArgumentName: "token", Enabled: true, NotNull: &nn}}

	result := Validate(map[string]any{"token": nil}, constraints)
	if result.Decision != DecisionDeny {
		t.Fatalf("decision = %v, want deny", result.Decision)
	}
}

func TestValidateFalsyNonNullAllowed(t *testing.T) {
	req := true
	nn := true
	constraints := []Argument{{ArgumentName: "count", Enabled: true, Required: &req, NotNull: &nn}}

	result := Validate(map[string]any{"count": 0.0}, constraints)
	if result.Decision != DecisionAllow {
		t.Fatalf("decision = %v, want allow for falsy-but-present value", result.Decision)
	}
}

func TestValidateDisabledConstraintSkipped(t *testing.T) {
	constraints := []Argument{{ArgumentName: "val", Enabled: false, GreaterThan: f64(10)}}
	result := Validate(map[string]any{"val": 1.0}, constraints)
	if result.Decision != DecisionAllow {
		t.Fatalf("decision = %v, want allow (disabled constraint)", result.Decision)
	}
	if len(result.Validations) != 0 {
		t.Fatalf("validations = %+v, want none for a disabled constraint", result.Validations)
	}
}

func TestValidateUnsafeRegexDenies(t *testing.T) {
	pattern := "(a+)+"
	constraints := []Argument{{ArgumentName: "val", Enabled: true, Regex: &pattern}}
	result := Validate(map[string]any{"val": "anything"}, constraints)
	if result.Decision != DecisionDeny {
		t.Fatalf("decision = %v, want deny", result.Decision)
	}
	if got := result.Validations[0].Reason; got == "" {
		t.Fatalf("expected a reason explaining the unsafe pattern")
	}
}

func TestValidateEmptyConstraintListAllows(t *testing.T) {
	result := Validate(map[string]any{"anything": 1.0}, nil)
	if result.Decision != DecisionAllow {
		t.Fatalf("decision = %v, want allow", result.Decision)
	}
}

func TestValidateNonMatchingTypePassesThrough(t *testing.T) {
	constraints := []Argument{{ArgumentName: "flag", Enabled: true, Minimum: f64(10)}}
	result := Validate(map[string]any{"flag": true}, constraints)
	if result.Decision != DecisionAllow {
		t.Fatalf("decision = %v, want allow (boolean ignores numeric bound)", result.Decision)
	}
}
