// Package regexsafety implements a conservative pre-filter that rejects regex
// patterns likely to exhibit catastrophic backtracking before they are ever
// compiled or executed against untrusted input.
package regexsafety

import "regexp"

// MaxPatternLength is the longest pattern the filter accepts. Patterns of
// exactly this length are accepted; anything longer is rejected outright.
const MaxPatternLength = 256

var (
	nestedQuantifierOnGroup = regexp.MustCompile(`[+*}]\s*\)\s*[+*{]`)
	adjacentQuantifiers     = regexp.MustCompile(`[+*}]\s*[+*{]`)
	overlappingAlternation  = regexp.MustCompile(`\.\*.*\|.*\.\*`)
)

// IsSafe reports whether pattern is free of the structural ReDoS shapes this
// package knows to reject. It never compiles or executes pattern itself —
// only its text is inspected.
func IsSafe(pattern string) bool {
	if len(pattern) > MaxPatternLength {
		return false
	}
	if nestedQuantifierOnGroup.MatchString(pattern) {
		return false
	}
	if adjacentQuantifiers.MatchString(pattern) {
		return false
	}
	if overlappingAlternation.MatchString(pattern) {
		return false
	}
	return true
}
