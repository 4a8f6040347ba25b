package policyir

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationError is one structured defect found in a Policy IR document.
// Path is a slash-delimited, JSON-pointer-like location, always preserving
// the parent property name; root-level defects report "/".
type ValidationError struct {
	Path    string
	Message string
	Keyword string
}

// SchemaError aggregates every ValidationError found in one pass. It is
// always returned when validation fails — the validator never silently
// passes a malformed document.
type SchemaError struct {
	Errors []ValidationError
}

func (e *SchemaError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = fmt.Sprintf("%s: %s (%s)", ve.Path, ve.Message, ve.Keyword)
	}
	return "policy IR validation failed: " + strings.Join(msgs, "; ")
}

// Parse decodes raw as YAML (a superset of JSON, so both formats go through
// the same decoder) into a generic document suitable for Validate.
func Parse(raw []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing policy document: %w", err)
	}
	return doc, nil
}

// Validate checks doc against Policy IR v1. It returns a *SchemaError
// listing every defect found, or nil when doc is a valid document.
func Validate(doc any) error {
	var errs []ValidationError
	validateRoot(doc, &errs)
	if len(errs) > 0 {
		return &SchemaError{Errors: errs}
	}
	return nil
}

func validateRoot(doc any, errs *[]ValidationError) {
	root, ok := asMap(doc)
	if !ok {
		addError(errs, "/", fmt.Sprintf("document must be an object, got %s", typeName(doc)), "type")
		return
	}

	for key := range root {
		if !topLevelKeys[key] {
			addError(errs, "/"+key, fmt.Sprintf("unknown top-level key %q", key), "additionalProperties")
		}
	}

	version, hasVersion := root["version"]
	if !hasVersion {
		addError(errs, "/version", "version is required", "required")
	} else if v, ok := version.(string); !ok || v != SupportedVersion {
		addError(errs, "/version", fmt.Sprintf("version must be %q", SupportedVersion), "enum")
	}

	rawRules, hasRules := root["rules"]
	if !hasRules {
		addError(errs, "/rules", "rules is required", "required")
		return
	}

	rules, ok := asSlice(rawRules)
	if !ok {
		addError(errs, "/rules", fmt.Sprintf("rules must be an array, got %s", typeName(rawRules)), "type")
		return
	}

	for i, raw := range rules {
		validateRule(fmt.Sprintf("/rules/%d", i), raw, errs)
	}
}

func validateRule(path string, raw any, errs *[]ValidationError) {
	rule, ok := asMap(raw)
	if !ok {
		addError(errs, path, fmt.Sprintf("rule must be an object, got %s", typeName(raw)), "type")
		return
	}

	for key := range rule {
		if !ruleKeys[key] {
			addError(errs, path+"/"+key, fmt.Sprintf("unknown rule key %q", key), "additionalProperties")
		}
	}

	if id, ok := rule["id"]; !ok {
		addError(errs, path+"/id", "rule id is required", "required")
	} else if s, ok := id.(string); !ok || s == "" {
		addError(errs, path+"/id", "rule id must be a non-empty string", "type")
	}

	action, hasAction := rule["action"]
	if !hasAction {
		addError(errs, path+"/action", "rule action is required", "required")
	} else if s, ok := action.(string); !ok || !Actions[s] {
		addError(errs, path+"/action", fmt.Sprintf("action must be one of %s", joinKeys(Actions)), "enum")
	}

	if rawConditions, ok := rule["conditions"]; ok {
		conditions, ok := asSlice(rawConditions)
		if !ok {
			addError(errs, path+"/conditions", fmt.Sprintf("conditions must be an array, got %s", typeName(rawConditions)), "type")
			return
		}
		for i, raw := range conditions {
			validateCondition(fmt.Sprintf("%s/conditions/%d", path, i), raw, errs)
		}
	}
}

func validateCondition(path string, raw any, errs *[]ValidationError) {
	cond, ok := asMap(raw)
	if !ok {
		addError(errs, path, fmt.Sprintf("condition must be an object, got %s", typeName(raw)), "type")
		return
	}

	for key := range cond {
		if !conditionKeys[key] {
			addError(errs, path+"/"+key, fmt.Sprintf("unknown condition key %q", key), "additionalProperties")
		}
	}

	if field, ok := cond["field"]; !ok {
		addError(errs, path+"/field", "condition field is required", "required")
	} else if s, ok := field.(string); !ok || s == "" {
		addError(errs, path+"/field", "condition field must be a non-empty string", "type")
	}

	operator, hasOperator := cond["operator"]
	if !hasOperator {
		addError(errs, path+"/operator", "condition operator is required", "required")
	} else if s, ok := operator.(string); !ok || !Operators[s] {
		addError(errs, path+"/operator", fmt.Sprintf("operator must be one of %s", joinKeys(Operators)), "enum")
	}

	if _, ok := cond["value"]; !ok {
		addError(errs, path+"/value", "condition value is required", "required")
	}
}

func addError(errs *[]ValidationError, path, message, keyword string) {
	*errs = append(*errs, ValidationError{Path: path, Message: message, Keyword: keyword})
}

// asMap normalizes both map[string]any (JSON decode shape) and
// map[any]any (a shape yaml.v3 can still hand back for certain inputs)
// into a single map[string]any view.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[s] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, float64:
		return "number"
	case []any:
		return "array"
	default:
		return "object"
	}
}

func joinKeys(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return strings.Join(keys, ", ")
}
