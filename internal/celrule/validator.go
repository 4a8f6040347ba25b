package celrule

import (
	"context"
	"fmt"

	"github.com/palisade-dev/palisade-go/internal/engine"
)

// NewValidator compiles expr once and returns a NamedValidator that, on
// every call, evaluates it against that call's ValidationContext: a true
// result produces decision, a false result abstains with DecisionAllow. An
// expression that fails to compile is reported immediately rather than on
// first use.
func NewValidator(name, expr string, decision engine.Decision, opts ...Option) (engine.NamedValidator, error) {
	ev, err := compile(expr)
	if err != nil {
		return engine.NamedValidator{}, fmt.Errorf("celrule %q: %w", name, err)
	}

	v := engine.NamedValidator{
		Name:        name,
		Description: fmt.Sprintf("CEL rule: %s", expr),
		Priority:    engine.DefaultPriority,
	}
	for _, opt := range opts {
		opt(&v)
	}

	reason := fmt.Sprintf("denied by CEL rule %q", name)

	v.Validate = func(ctx context.Context, vctx engine.ValidationContext) (engine.ValidationResult, error) {
		matched, err := ev.evaluate(ctx, vctx)
		if err != nil {
			return engine.ValidationResult{}, err
		}
		if !matched {
			return engine.ValidationResult{Decision: engine.DecisionAllow, Reason: "CEL rule did not match"}, nil
		}
		return engine.ValidationResult{Decision: decision, Reason: reason}, nil
	}

	return v, nil
}

// Option customizes a NamedValidator built by NewValidator before it is
// handed to the engine.
type Option func(*engine.NamedValidator)

// WithPriority overrides the engine.DefaultPriority every celrule validator
// otherwise runs at.
func WithPriority(priority int) Option {
	return func(v *engine.NamedValidator) { v.Priority = priority }
}

// WithToolFilter restricts the validator to the named tools.
func WithToolFilter(tools ...string) Option {
	return func(v *engine.NamedValidator) {
		filter := make(map[string]bool, len(tools))
		for _, t := range tools {
			filter[t] = true
		}
		v.ToolFilter = filter
	}
}

// WithDescription overrides the default "CEL rule: <expr>" description.
func WithDescription(desc string) Option {
	return func(v *engine.NamedValidator) { v.Description = desc }
}
