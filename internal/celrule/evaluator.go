package celrule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/palisade-dev/palisade-go/internal/engine"
)

// maxExpressionLength bounds a rule's source text, mirroring the pack's
// CEL-based policy evaluator's SECU-05 limit.
const maxExpressionLength = 1024

// maxCostBudget bounds the CEL runtime's estimated evaluation cost.
const maxCostBudget = 100_000

// maxNestingDepth bounds parenthesis/bracket/brace nesting in the source.
const maxNestingDepth = 50

// evalTimeout bounds a single evaluation's wall-clock time.
const evalTimeout = 2 * time.Second

// interruptCheckFreq is how often, in comprehension iterations, context
// cancellation is checked during evaluation.
const interruptCheckFreq = 100

// evaluator compiles and runs one CEL expression against a
// engine.ValidationContext.
type evaluator struct {
	env     *cel.Env
	program cel.Program
}

func compile(expr string) (*evaluator, error) {
	if expr == "" {
		return nil, errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return nil, fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if err := validateNesting(expr); err != nil {
		return nil, err
	}

	env, err := newEnvironment()
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling expression: %w", issues.Err())
	}

	prg, err := env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("building CEL program: %w", err)
	}

	return &evaluator{env: env, program: prg}, nil
}

// validateNesting rejects expressions whose bracket nesting exceeds
// maxNestingDepth, a cheap guard against pathological expressions before
// they ever reach the CEL compiler.
func validateNesting(expr string) error {
	var depth, max int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > max {
				max = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if max > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", max, maxNestingDepth)
	}
	return nil
}

// evaluate runs the compiled program against vctx with a bounded timeout,
// returning the boolean result. A non-boolean result is a compile-time
// configuration mistake, not a runtime one, so it is reported as an error
// rather than silently treated as false.
func (e *evaluator) evaluate(ctx context.Context, vctx engine.ValidationContext) (bool, error) {
	activation := activationFor(vctx)

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	result, _, err := e.program.ContextEval(evalCtx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluating expression: %w", err)
	}

	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return b, nil
}

func activationFor(vctx engine.ValidationContext) map[string]any {
	args := vctx.Arguments
	if args == nil {
		args = map[string]any{}
	}
	custom := vctx.Custom
	if custom == nil {
		custom = map[string]any{}
	}
	return map[string]any{
		"tool_name": vctx.ToolName,
		"arguments": args,
		"call_id":   vctx.CallID,
		"timestamp": vctx.Timestamp,
		"custom":    custom,
	}
}
