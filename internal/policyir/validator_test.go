package policyir

import "testing"

func TestValidateValidDocument(t *testing.T) {
	doc := map[string]any{
		"version": "1.0",
		"rules": []any{
			map[string]any{
				"id":     "r1",
				"name":   "block writes",
				"action": "block",
				"conditions": []any{
					map[string]any{"field": "amount", "operator": "greater_than", "value": 1000},
				},
			},
		},
	}
	if err := Validate(doc); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsNonObjectRoot(t *testing.T) {
	for _, doc := range []any{nil, "a string", 42, []any{1, 2}} {
		err := Validate(doc)
		if err == nil {
			t.Fatalf("Validate(%#v) = nil, want error", doc)
		}
		schemaErr, ok := err.(*SchemaError)
		if !ok || len(schemaErr.Errors) == 0 {
			t.Fatalf("Validate(%#v) did not return a populated SchemaError", doc)
		}
		if schemaErr.Errors[0].Path != "/" {
			t.Fatalf("root defect path = %q, want /", schemaErr.Errors[0].Path)
		}
	}
}

func TestValidateMissingVersionAndRules(t *testing.T) {
	err := Validate(map[string]any{})
	schemaErr, ok := err.(*SchemaError)
	if !ok {
		t.Fatalf("Validate({}) = %v, want *SchemaError", err)
	}
	if len(schemaErr.Errors) < 2 {
		t.Fatalf("expected at least 2 errors for missing version+rules, got %d", len(schemaErr.Errors))
	}
}

func TestValidateBadActionAndOperator(t *testing.T) {
	doc := map[string]any{
		"version": "1.0",
		"rules": []any{
			map[string]any{
				"id":     "r1",
				"action": "BAD_ACTION",
				"conditions": []any{
					map[string]any{"field": "x", "operator": "BAD_OPERATOR", "value": 1},
				},
			},
		},
	}
	err := Validate(doc)
	schemaErr, ok := err.(*SchemaError)
	if !ok {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	foundAction, foundOperator := false, false
	for _, e := range schemaErr.Errors {
		if e.Path == "/rules/0/action" {
			foundAction = true
		}
		if e.Path == "/rules/0/conditions/0/operator" {
			foundOperator = true
		}
	}
	if !foundAction || !foundOperator {
		t.Fatalf("errors = %+v, want defects at rules/0/action and .../conditions/0/operator", schemaErr.Errors)
	}
}

func TestValidateRuleMissingID(t *testing.T) {
	doc := map[string]any{
		"version": "1.0",
		"rules": []any{
			map[string]any{"action": "allow"},
		},
	}
	err := Validate(doc)
	schemaErr, ok := err.(*SchemaError)
	if !ok {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	found := false
	for _, e := range schemaErr.Errors {
		if e.Path == "/rules/0/id" {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors = %+v, want a defect at /rules/0/id", schemaErr.Errors)
	}
}

func TestValidateUnknownTopLevelKey(t *testing.T) {
	doc := map[string]any{
		"version": "1.0",
		"rules":   []any{},
		"bogus":   true,
	}
	err := Validate(doc)
	schemaErr, ok := err.(*SchemaError)
	if !ok {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	found := false
	for _, e := range schemaErr.Errors {
		if e.Path == "/bogus" {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors = %+v, want a defect at /bogus", schemaErr.Errors)
	}
}

func TestParseRoundTripsYAMLAndJSON(t *testing.T) {
	yamlDoc := []byte("version: \"1.0\"\nrules:\n  - id: r1\n    action: allow\n")
	jsonDoc := []byte(`{"version": "1.0", "rules": [{"id": "r1", "action": "allow"}]}`)

	for _, raw := range [][]byte{yamlDoc, jsonDoc} {
		doc, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%s) error: %v", raw, err)
		}
		if err := Validate(doc); err != nil {
			t.Fatalf("Validate(Parse(%s)) = %v, want nil", raw, err)
		}
	}
}
