// Package policyir validates Policy IR v1 documents: the YAML/JSON format
// Cloud uses to describe a tool's rules. Validation is schema-level only —
// it never interprets rule semantics, just shape.
package policyir

// SupportedVersion is the only "version" value this schema accepts.
const SupportedVersion = "1.0"

// Actions is the closed set of values a rule's "action" field may hold.
var Actions = map[string]bool{
	"block":            true,
	"allow":            true,
	"require_approval": true,
}

// Operators is the closed set of values a condition's "operator" field may
// hold.
var Operators = map[string]bool{
	"equals":       true,
	"not_equals":   true,
	"contains":     true,
	"not_contains": true,
	"matches":      true,
	"greater_than": true,
	"less_than":    true,
	"in":           true,
	"not_in":       true,
}

// topLevelKeys is the closed set of keys a Policy IR v1 document may have.
var topLevelKeys = map[string]bool{
	"version": true,
	"rules":   true,
}

// ruleKeys is the closed set of keys one rule entry may have.
var ruleKeys = map[string]bool{
	"id":         true,
	"name":       true,
	"action":     true,
	"conditions": true,
}

// conditionKeys is the closed set of keys one condition entry may have.
var conditionKeys = map[string]bool{
	"field":    true,
	"operator": true,
	"value":    true,
}
