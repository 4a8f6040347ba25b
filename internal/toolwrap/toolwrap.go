// Package toolwrap adapts an arbitrary tool object — anything exposing a
// Func, Invoke, Handler, Run, Execute, Call, or call-shaped method or field —
// into a single callable, detecting which shape it has once at wrap time
// rather than on every call.
package toolwrap

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/palisade-dev/palisade-go/internal/engine"
	"github.com/palisade-dev/palisade-go/internal/history"
	"github.com/palisade-dev/palisade-go/internal/interceptor"
)

// ErrToolCallDenied is the sentinel ToolCallDeniedError matches against, for
// use with errors.Is.
var ErrToolCallDenied = errors.New("tool call denied")

// capabilityNames lists the method/field names probed, in priority order, to
// find a tool's callable. The first match wins.
var capabilityNames = []string{"Func", "Invoke", "Handler", "Run", "Execute", "Call"}

// Invoker is the normalized shape every detected capability is adapted to.
type Invoker func(ctx context.Context, args map[string]any) (any, error)

// InvokerFunc lets an ordinary function satisfy the adapter construction
// path without its own named type, mirroring the interceptor package's
// function-adapter convention.
type InvokerFunc = Invoker

// ToolCallDeniedError is returned by a wrapped tool's callable when the
// interceptor denies the call.
type ToolCallDeniedError struct {
	ToolName         string
	CallID           string
	ValidationResult engine.ValidationResult
}

func (e *ToolCallDeniedError) Error() string {
	return fmt.Sprintf("tool call %q (%s) denied: %s", e.ToolName, e.CallID, e.ValidationResult.Reason)
}

// Is reports whether target is ErrToolCallDenied, so callers can write
// errors.Is(err, toolwrap.ErrToolCallDenied) instead of a type assertion.
func (e *ToolCallDeniedError) Is(target error) bool {
	return target == ErrToolCallDenied
}

// Signature is the {name, description, parameters} triple extracted from a
// tool at wrap time, best-effort.
type Signature struct {
	Name        string
	Description string
	Parameters  []string
}

// Tool is a wrapped tool: its original object, its detected Invoker, and its
// extracted Signature.
type Tool struct {
	Name      string
	Original  any
	Signature Signature
	invoke    Invoker
}

// Call runs the tool's underlying callable directly, with no interception.
func (t *Tool) Call(ctx context.Context, args map[string]any) (any, error) {
	return t.invoke(ctx, args)
}

// Wrapper detects a tool's capability once and produces a Tool whose calls
// run through an Interceptor first.
type Wrapper struct {
	ic       *interceptor.Interceptor
	history  *history.Tracker
	nextCall func() string
}

// NewWrapper creates a Wrapper. nextCall generates the ID used for each
// ToolCall handed to the interceptor; a nil nextCall uses a simple counter.
func NewWrapper(ic *interceptor.Interceptor, hist *history.Tracker, nextCall func() string) *Wrapper {
	if nextCall == nil {
		var n int64
		nextCall = func() string {
			n++
			return fmt.Sprintf("call-%d", n)
		}
	}
	return &Wrapper{ic: ic, history: hist, nextCall: nextCall}
}

// Wrap inspects tool once via reflection, builds its Invoker adapter, and
// returns a Tool. Tool.Call invokes the detected callable directly; pass the
// Tool to w.Wrapped for an Invoker that runs every call through
// validation/approval/history first.
func (w *Wrapper) Wrap(name string, tool any) (*Tool, error) {
	invoke, err := detectInvoker(tool)
	if err != nil {
		return nil, fmt.Errorf("wrapping tool %q: %w", name, err)
	}

	sig := extractSignature(name, tool)

	return &Tool{
		Name:      name,
		Original:  tool,
		Signature: sig,
		invoke:    invoke,
	}, nil
}

// Wrapped returns an Invoker that runs args through the interceptor before
// calling through to t's underlying callable. A deny returns
// *ToolCallDeniedError; a log-mode rewrite calls through with the
// interceptor's (possibly unchanged) FinalArguments.
func (w *Wrapper) Wrapped(t *Tool) Invoker {
	return func(ctx context.Context, args map[string]any) (any, error) {
		call := engine.ToolCall{ID: w.nextCall(), Name: t.Name, Arguments: args}
		recent := w.history.Recent()

		result, err := w.ic.Intercept(ctx, call, recent)
		if err != nil {
			return nil, err
		}
		if !result.Allowed {
			return nil, &ToolCallDeniedError{ToolName: t.Name, CallID: call.ID, ValidationResult: result.ValidationResult}
		}
		return t.invoke(ctx, result.FinalArguments)
	}
}

// detectInvoker probes tool once for a callable capability: tool itself if it
// is already func(context.Context, map[string]any) (any, error), otherwise
// the first well-known method or field name, in priority order. An object
// whose only callable has some other name is rejected.
func detectInvoker(tool any) (Invoker, error) {
	if inv, ok := tool.(Invoker); ok {
		return inv, nil
	}
	if fn, ok := tool.(func(context.Context, map[string]any) (any, error)); ok {
		return fn, nil
	}

	v := reflect.ValueOf(tool)
	for _, name := range capabilityNames {
		if inv, ok := invokerFromMethod(v, name); ok {
			return inv, nil
		}
		if inv, ok := invokerFromField(v, name); ok {
			return inv, nil
		}
	}

	if inv, ok := invokerFromMethod(v, "_call"); ok {
		return inv, nil
	}

	return nil, fmt.Errorf("no Func/Invoke/Handler/Run/Execute/Call capability found on %T", tool)
}

func invokerFromMethod(v reflect.Value, name string) (Invoker, bool) {
	m := v.MethodByName(name)
	if !m.IsValid() {
		return nil, false
	}
	return adaptCallable(m)
}

func invokerFromField(v reflect.Value, name string) (Invoker, bool) {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	f := v.FieldByName(name)
	if !f.IsValid() || f.Kind() != reflect.Func {
		return nil, false
	}
	return adaptCallable(f)
}

// adaptCallable accepts any func value whose first parameter, if any, is
// assignable from context.Context and whose remaining input is a single
// map[string]any or no further arguments, returning (any, error) or any
// single value.
func adaptCallable(fn reflect.Value) (Invoker, bool) {
	if fn.Kind() != reflect.Func {
		return nil, false
	}
	t := fn.Type()

	takesCtx := t.NumIn() > 0 && t.In(0).Implements(reflect.TypeOf((*context.Context)(nil)).Elem())
	takesArgs := t.NumIn() == boolToInt(takesCtx)+1

	return func(ctx context.Context, args map[string]any) (any, error) {
		in := make([]reflect.Value, 0, 2)
		if takesCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		if takesArgs {
			in = append(in, reflect.ValueOf(args))
		}

		out := fn.Call(in)
		return splitCallResult(out)
	}, true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitCallResult(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if err, ok := out[0].Interface().(error); ok {
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		var err error
		if e, ok := out[len(out)-1].Interface().(error); ok {
			err = e
		}
		return out[0].Interface(), err
	}
}

// extractSignature reads a {name, description, parameters} triple from
// tool's exported fields, falling back to name/no-parameters when a field is
// absent. Parameters come from an InputSchema field's struct tags when
// present; the detected callable's own parameters are not inspected, so a
// tool without an InputSchema field gets no parameters.
func extractSignature(name string, tool any) Signature {
	sig := Signature{Name: name}

	v := reflect.ValueOf(tool)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return sig
	}

	if d := v.FieldByName("Description"); d.IsValid() && d.Kind() == reflect.String {
		sig.Description = d.String()
	}

	schema := v.FieldByName("InputSchema")
	if !schema.IsValid() {
		return sig
	}
	st := schema.Type()
	if st.Kind() == reflect.Ptr {
		if schema.IsNil() {
			return sig
		}
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return sig
	}
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if tag, ok := f.Tag.Lookup("json"); ok {
			sig.Parameters = append(sig.Parameters, tagName(tag, f.Name))
		} else {
			sig.Parameters = append(sig.Parameters, f.Name)
		}
	}
	return sig
}

func tagName(tag, fallback string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			if i == 0 {
				return fallback
			}
			return tag[:i]
		}
	}
	if tag == "" {
		return fallback
	}
	return tag
}
