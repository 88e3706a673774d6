// Package schema validates values against the JSON Schema subset functions
// use to describe their inputs and outputs. It is hand-rolled rather than
// built on a general-purpose JSON Schema library because callers depend on
// exact error message text as part of the validation contract; see
// DESIGN.md for the full justification.
package schema

import (
	"fmt"
	"strconv"
)

// MissingFieldError reports a required object property absent from the
// validated value. Error() preserves the package's generic wording; callers
// that need the bare field name (to build their own message) can recover it
// with errors.As instead of parsing the string.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("schema validation: missing required field '%s'", e.Field)
}

// Validate checks value against schema and returns a copy of value with any
// numeric-string coercions applied (see coerceNumeric), or the first
// validation failure encountered. A nil or empty schema always passes.
func Validate(sch map[string]any, value any) (any, error) {
	if len(sch) == 0 {
		return value, nil
	}
	return validateAt(sch, value, "$")
}

func validateAt(sch map[string]any, value any, path string) (any, error) {
	declaredType, _ := sch["type"].(string)

	value, err := coerceNumeric(declaredType, value)
	if err != nil {
		return nil, err
	}

	if declaredType != "" {
		if err := checkType(declaredType, value, path); err != nil {
			return nil, err
		}
	}

	if enumVals, ok := sch["enum"].([]any); ok {
		if !enumContains(enumVals, value) {
			return nil, fmt.Errorf("schema enum validation failed: field %s must be one of: %s", path, formatEnum(enumVals))
		}
	}

	switch declaredType {
	case "object":
		return validateObject(sch, value, path)
	case "array":
		return validateArray(sch, value, path)
	default:
		return value, nil
	}
}

func validateObject(sch map[string]any, value any, path string) (any, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		// checkType already rejected non-objects when type was declared.
		return value, nil
	}

	if required, ok := sch["required"].([]any); ok {
		for _, r := range required {
			field, _ := r.(string)
			if _, present := obj[field]; !present {
				return nil, &MissingFieldError{Field: field}
			}
		}
	}

	properties, _ := sch["properties"].(map[string]any)
	result := make(map[string]any, len(obj))
	for k, v := range obj {
		result[k] = v
	}
	for key, propSchemaAny := range properties {
		propValue, present := obj[key]
		if !present {
			continue
		}
		propSchema, ok := propSchemaAny.(map[string]any)
		if !ok {
			continue
		}
		coerced, err := validateAt(propSchema, propValue, path+"."+key)
		if err != nil {
			return nil, err
		}
		result[key] = coerced
	}
	return result, nil
}

func validateArray(sch map[string]any, value any, path string) (any, error) {
	arr, ok := value.([]any)
	if !ok {
		return value, nil
	}
	itemSchema, ok := sch["items"].(map[string]any)
	if !ok {
		return value, nil
	}
	result := make([]any, len(arr))
	for i, item := range arr {
		coerced, err := validateAt(itemSchema, item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		result[i] = coerced
	}
	return result, nil
}

func checkType(declaredType string, value any, path string) error {
	ok := false
	switch declaredType {
	case "string":
		_, ok = value.(string)
	case "number":
		ok = isNumeric(value)
	case "integer":
		ok = isInteger(value)
	case "boolean":
		_, ok = value.(bool)
	case "object":
		_, ok = value.(map[string]any)
	case "array":
		_, ok = value.([]any)
	case "null":
		ok = value == nil
	default:
		ok = true
	}
	if !ok {
		return fmt.Errorf("schema type mismatch: expected %s, got %s", declaredType, jsTypeOf(value))
	}
	return nil
}

// coerceNumeric converts a numeric string to a float64 when the schema
// declares a numeric type, matching how a JSON-transport boundary commonly
// receives numbers that arrived as strings (form fields, query params).
func coerceNumeric(declaredType string, value any) (any, error) {
	if declaredType != "number" && declaredType != "integer" {
		return value, nil
	}
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return value, nil
	}
	return f, nil
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return n == float64(int64(n))
	case float32:
		return n == float32(int64(n))
	default:
		return false
	}
}

func jsTypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "unknown"
	}
}

func enumContains(candidates []any, value any) bool {
	for _, c := range candidates {
		if fmt.Sprintf("%v", c) == fmt.Sprintf("%v", value) {
			return true
		}
	}
	return false
}

func formatEnum(vals []any) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = fmt.Sprintf("%v", v)
	}
	return joinComma(strs)
}

func joinComma(strs []string) string {
	out := ""
	for i, s := range strs {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
