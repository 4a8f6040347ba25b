package palisade

import (
	"github.com/palisade-dev/palisade-go/internal/celrule"
	"github.com/palisade-dev/palisade-go/internal/engine"
)

// Decision is the tagged outcome a validator produces for one call: allow,
// deny, or require_approval.
type Decision = engine.Decision

// The three decisions a validator (including one built by NewCELValidator)
// may return.
const (
	DecisionAllow           = engine.DecisionAllow
	DecisionDeny            = engine.DecisionDeny
	DecisionRequireApproval = engine.DecisionRequireApproval
)

// NamedValidator is a single entry in the engine's ordered validator chain,
// the type AddValidator and WithValidators accept. NewCELValidator returns
// one; a caller may also build one directly.
type NamedValidator = engine.NamedValidator

// CELRuleOption customizes a NamedValidator built by NewCELValidator before
// it is added to a Client's engine.
type CELRuleOption = celrule.Option

// WithCELPriority overrides the default priority (engine.DefaultPriority) a
// CEL validator otherwise runs at.
func WithCELPriority(priority int) CELRuleOption {
	return celrule.WithPriority(priority)
}

// WithCELToolFilter restricts a CEL validator to the named tools.
func WithCELToolFilter(tools ...string) CELRuleOption {
	return celrule.WithToolFilter(tools...)
}

// WithCELDescription overrides a CEL validator's default
// "CEL rule: <expr>" description.
func WithCELDescription(desc string) CELRuleOption {
	return celrule.WithDescription(desc)
}

// NewCELValidator compiles expr once as a CEL boolean expression over a
// call's tool_name/arguments/call_id/timestamp/custom and returns a
// NamedValidator that evaluates it on every call: a true result produces
// decision, a false result abstains with DecisionAllow. Add the result to a
// Client with AddValidator, or collect several and pass them to New via
// WithValidators.
func NewCELValidator(name, expr string, decision Decision, opts ...CELRuleOption) (NamedValidator, error) {
	return celrule.NewValidator(name, expr, decision, opts...)
}
