package policycache

import "github.com/palisade-dev/palisade-go/internal/constraint"

// parsePolicy translates the server's wire-format policy document (camelCase
// JSON keys) into the internal constraint.Policy/constraint.Argument
// vocabulary, exactly mirroring the field-name table the reference cache
// applies on refresh.
func parsePolicy(toolName string, doc map[string]any) constraint.Policy {
	mode, _ := doc["mode"].(string)
	if mode == "" {
		mode = "deterministic"
	}

	name, _ := doc["toolName"].(string)
	if name == "" {
		name = toolName
	}

	rawConstraints, _ := doc["constraints"].([]any)
	constraints := make([]constraint.Argument, 0, len(rawConstraints))
	for _, raw := range rawConstraints {
		if m, ok := raw.(map[string]any); ok {
			constraints = append(constraints, parseConstraint(m))
		}
	}

	_, hasSession := doc["sessionConstraints"]
	_, hasRateLimits := doc["rateLimits"]

	version := 0
	if v, ok := doc["version"].(float64); ok {
		version = int(v)
	}

	return constraint.Policy{
		ToolName:              name,
		Mode:                  mode,
		Constraints:           constraints,
		HasSessionConstraints: hasSession && doc["sessionConstraints"] != nil,
		HasRateLimits:         hasRateLimits && doc["rateLimits"] != nil,
		Version:               version,
	}
}

func parseConstraint(m map[string]any) constraint.Argument {
	enabled := true
	if v, ok := m["enabled"].(bool); ok {
		enabled = v
	}

	c := constraint.Argument{
		ArgumentName:       stringField(m, "argumentName"),
		Enabled:            enabled,
		GreaterThan:        floatField(m, "greaterThan"),
		LessThan:           floatField(m, "lessThan"),
		GreaterThanOrEqual: floatField(m, "greaterThanOrEqual"),
		LessThanOrEqual:    floatField(m, "lessThanOrEqual"),
		Minimum:            floatField(m, "minimum"),
		Maximum:            floatField(m, "maximum"),
		MinLength:          intField(m, "minLength"),
		MaxLength:          intField(m, "maxLength"),
		MinItems:           intField(m, "minItems"),
		MaxItems:           intField(m, "maxItems"),
		Required:           boolField(m, "required"),
		NotNull:            boolField(m, "notNull"),
	}
	if regex, ok := m["regex"].(string); ok {
		c.Regex = &regex
	}
	if rawEnum, ok := m["enum"].([]any); ok {
		enum := make([]string, 0, len(rawEnum))
		for _, v := range rawEnum {
			if s, ok := v.(string); ok {
				enum = append(enum, s)
			}
		}
		c.Enum = enum
	}
	return c
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string) *float64 {
	if v, ok := m[key].(float64); ok {
		return &v
	}
	return nil
}

func intField(m map[string]any, key string) *int {
	if v, ok := m[key].(float64); ok {
		n := int(v)
		return &n
	}
	return nil
}

func boolField(m map[string]any, key string) *bool {
	if v, ok := m[key].(bool); ok {
		return &v
	}
	return nil
}
