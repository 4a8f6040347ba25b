package constraint

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/palisade-dev/palisade-go/internal/regexsafety"
)

const maxRegexLength = 256

// Validate evaluates args against constraints in order and returns the first
// failure, or an allow once every enabled constraint has passed.
//
// On failure, Validations holds exactly the one failing entry — constraints
// that passed earlier in the list are not carried into the failure result.
func Validate(args map[string]any, constraints []Argument) Result {
	start := time.Now()

	var passed []Entry
	for _, c := range constraints {
		if !c.Enabled {
			continue
		}

		value, keyExists := args[c.ArgumentName]

		if value == nil {
			if c.Required != nil && *c.Required && !keyExists {
				return Result{
					Decision:       DecisionDeny,
					Reason:         fmt.Sprintf("Required argument '%s' is missing", c.ArgumentName),
					FailedArgument: c.ArgumentName,
					Validations: []Entry{{
						Argument: c.ArgumentName,
						Status:   StatusFail,
						Reason:   "required argument is missing",
					}},
					LatencyMs: elapsedMs(start),
				}
			}
			if c.NotNull != nil && *c.NotNull && keyExists {
				return Result{
					Decision:       DecisionDeny,
					Reason:         fmt.Sprintf("Argument '%s' cannot be null", c.ArgumentName),
					FailedArgument: c.ArgumentName,
					Validations: []Entry{{
						Argument: c.ArgumentName,
						Status:   StatusFail,
						Reason:   "argument cannot be null",
					}},
					LatencyMs: elapsedMs(start),
				}
			}
			continue
		}

		result := checkConstraint(value, c)
		if !result.Passed {
			return Result{
				Decision:       DecisionDeny,
				Reason:         fmt.Sprintf("Argument '%s' failed: %s", c.ArgumentName, result.Reason),
				FailedArgument: c.ArgumentName,
				Validations: []Entry{{
					Argument: c.ArgumentName,
					Status:   StatusFail,
					Reason:   result.Reason,
				}},
				LatencyMs: elapsedMs(start),
			}
		}

		passed = append(passed, Entry{Argument: c.ArgumentName, Status: StatusPass})
	}

	return Result{
		Decision:    DecisionAllow,
		Validations: passed,
		LatencyMs:   elapsedMs(start),
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// checkConstraint dispatches on the runtime type of value. Types with no
// matching per-kind bounds (bool, nested map/struct) pass through.
func checkConstraint(value any, c Argument) CheckResult {
	switch v := value.(type) {
	case bool:
		return CheckResult{Passed: true}
	case int:
		return checkNumber(float64(v), c)
	case int32:
		return checkNumber(float64(v), c)
	case int64:
		return checkNumber(float64(v), c)
	case float32:
		return checkNumber(float64(v), c)
	case float64:
		return checkNumber(v, c)
	case string:
		return checkString(v, c)
	case []any:
		return checkArray(len(v), c)
	case []string:
		return checkArray(len(v), c)
	default:
		return CheckResult{Passed: true}
	}
}

func checkNumber(value float64, c Argument) CheckResult {
	if math.IsNaN(value) {
		return CheckResult{Passed: false, Reason: "value is NaN"}
	}
	if math.IsInf(value, 0) {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("value %v is not finite", value)}
	}

	if c.GreaterThan != nil && value <= *c.GreaterThan {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("value %v must be greater than %v", value, *c.GreaterThan)}
	}
	if c.LessThan != nil && value >= *c.LessThan {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("value %v must be less than %v", value, *c.LessThan)}
	}
	if c.GreaterThanOrEqual != nil && value < *c.GreaterThanOrEqual {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("value %v must be >= %v", value, *c.GreaterThanOrEqual)}
	}
	if c.LessThanOrEqual != nil && value > *c.LessThanOrEqual {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("value %v must be <= %v", value, *c.LessThanOrEqual)}
	}
	if c.Minimum != nil && value < *c.Minimum {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("value %v must be >= %v", value, *c.Minimum)}
	}
	if c.Maximum != nil && value > *c.Maximum {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("value %v must be <= %v", value, *c.Maximum)}
	}
	return CheckResult{Passed: true}
}

func checkString(value string, c Argument) CheckResult {
	if c.MinLength != nil && len(value) < *c.MinLength {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("length %d is less than minimum %d", len(value), *c.MinLength)}
	}
	if c.MaxLength != nil && len(value) > *c.MaxLength {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("length %d exceeds maximum %d", len(value), *c.MaxLength)}
	}
	if c.Regex != nil {
		pattern := *c.Regex
		if len(pattern) > maxRegexLength {
			return CheckResult{Passed: false, Reason: fmt.Sprintf("regex pattern too long (%d chars, max %d)", len(pattern), maxRegexLength)}
		}
		if !regexsafety.IsSafe(pattern) {
			return CheckResult{Passed: false, Reason: fmt.Sprintf("regex pattern is potentially unsafe (ReDoS risk): %s", pattern)}
		}
		compiled, err := compileRegex(pattern)
		if err != nil {
			return CheckResult{Passed: false, Reason: fmt.Sprintf("invalid regex pattern: %s", pattern)}
		}
		if !compiled.MatchString(value) {
			return CheckResult{Passed: false, Reason: fmt.Sprintf("value does not match pattern %s", pattern)}
		}
	}
	if c.Enum != nil && !contains(c.Enum, value) {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("value %q is not in allowed values: %s", value, strings.Join(c.Enum, ", "))}
	}
	return CheckResult{Passed: true}
}

func checkArray(length int, c Argument) CheckResult {
	if c.MinItems != nil && length < *c.MinItems {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("array has %d items, minimum is %d", length, *c.MinItems)}
	}
	if c.MaxItems != nil && length > *c.MaxItems {
		return CheckResult{Passed: false, Reason: fmt.Sprintf("array has %d items, maximum is %d", length, *c.MaxItems)}
	}
	return CheckResult{Passed: true}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
