// Package celrule lets a caller hand the validation engine a CEL boolean
// expression instead of a Go closure: NewValidator compiles expr once and
// returns an engine.NamedValidator that evaluates it against each call's
// ValidationContext. Ported from the CEL policy-environment/evaluator
// pattern in the wider pack (cost-limited, nesting-limited, timeout-bounded
// compilation and evaluation), rebuilt around this module's
// engine.ValidationContext instead of a framework-spanning evaluation
// context.
package celrule

import (
	"github.com/google/cel-go/cel"
)

// newEnvironment creates the CEL environment every compiled rule shares:
// the call's tool name, its arguments, its id, its unix-nanosecond
// timestamp, and the caller-supplied custom map.
func newEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("tool_name", cel.StringType),
		cel.Variable("arguments", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("call_id", cel.StringType),
		cel.Variable("timestamp", cel.IntType),
		cel.Variable("custom", cel.MapType(cel.StringType, cel.DynType)),
	)
}
