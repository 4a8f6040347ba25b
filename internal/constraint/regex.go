package constraint

import "regexp"

// compileRegex compiles pattern, isolated in its own file so the one place
// that calls regexp.Compile on constraint-supplied text is easy to audit
// alongside the regexsafety pre-filter that must run before it.
func compileRegex(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(pattern)
}
