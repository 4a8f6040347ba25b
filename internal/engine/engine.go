package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultPriority is used for a NamedValidator whose Priority is zero.
const DefaultPriority = 100

// Engine holds an ordered sequence of NamedValidators and evaluates a
// ValidationContext against all of them in (priority, insertion) order.
type Engine struct {
	mu              sync.RWMutex
	validators      []NamedValidator
	insertionIndex  []int
	nextInsertion   int
	defaultDecision Decision
	logger          *slog.Logger
}

// New creates an Engine. defaultDecision is what Validate returns when every
// validator passes or abstains; the repository default is DecisionAllow. A
// nil logger defaults to slog.Default().
func New(defaultDecision Decision, logger *slog.Logger) *Engine {
	if defaultDecision == "" {
		defaultDecision = DecisionAllow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		defaultDecision: defaultDecision,
		logger:          logger,
	}
}

// AddValidator appends v to the chain.
func (e *Engine) AddValidator(v NamedValidator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v.Priority == 0 {
		v.Priority = DefaultPriority
	}
	e.validators = append(e.validators, v)
	e.insertionIndex = append(e.insertionIndex, e.nextInsertion)
	e.nextInsertion++
}

// AddValidators appends each of vs in order.
func (e *Engine) AddValidators(vs ...NamedValidator) {
	for _, v := range vs {
		e.AddValidator(v)
	}
}

// orderedSnapshot returns a stable-sorted copy of the current validator
// chain, safe to iterate without holding the engine lock.
func (e *Engine) orderedSnapshot() []NamedValidator {
	e.mu.RLock()
	defer e.mu.RUnlock()

	type indexed struct {
		validator NamedValidator
		insertion int
	}
	snapshot := make([]indexed, len(e.validators))
	for i, v := range e.validators {
		snapshot[i] = indexed{validator: v, insertion: e.insertionIndex[i]}
	}

	sort.SliceStable(snapshot, func(i, j int) bool {
		if snapshot[i].validator.Priority != snapshot[j].validator.Priority {
			return snapshot[i].validator.Priority < snapshot[j].validator.Priority
		}
		return snapshot[i].insertion < snapshot[j].insertion
	})

	ordered := make([]NamedValidator, len(snapshot))
	for i, s := range snapshot {
		ordered[i] = s.validator
	}
	return ordered
}

// Validate runs vctx through the chain. Validators whose ToolFilter does not
// contain vctx.ToolName are skipped entirely (they do not appear in
// ValidatorResults). A validator that returns an error has that error
// isolated into its ValidatorOutcome — it never aborts the chain. The first
// deny or require_approval result short-circuits the remaining validators.
func (e *Engine) Validate(ctx context.Context, vctx ValidationContext) AggregatedResult {
	var outcomes []ValidatorOutcome

	for _, v := range e.orderedSnapshot() {
		if v.ToolFilter != nil && !v.ToolFilter[vctx.ToolName] {
			continue
		}

		validatorStart := time.Now()
		result, err := e.runValidator(ctx, v, vctx)
		outcome := ValidatorOutcome{
			ValidatorName: v.Name,
			Result:        result,
			Err:           err,
			DurationMs:    float64(time.Since(validatorStart)) / float64(time.Millisecond),
		}
		outcomes = append(outcomes, outcome)

		if err != nil {
			e.logger.Error("validator raised an error, isolating and continuing",
				"validator", v.Name, "tool", vctx.ToolName, "error", err)
			continue
		}

		if result.Decision == DecisionDeny || result.Decision == DecisionRequireApproval {
			return AggregatedResult{FinalResult: result, ValidatorResults: outcomes}
		}
	}

	return AggregatedResult{
		FinalResult: ValidationResult{
			Decision: e.defaultDecision,
			Reason:   "All validators passed",
		},
		ValidatorResults: outcomes,
	}
}

// runValidator recovers a panicking validator into an error so one
// misbehaving validator can never bring down the chain or the caller.
func (e *Engine) runValidator(ctx context.Context, v NamedValidator, vctx ValidationContext) (result ValidationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validator %q panicked: %v", v.Name, r)
		}
	}()
	return v.Validate(ctx, vctx)
}
