package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTypeMismatch(t *testing.T) {
	_, err := Validate(map[string]any{"type": "string"}, 5)
	require.Error(t, err)
	assert.Equal(t, "schema type mismatch: expected string, got number", err.Error())
}

func TestValidateMissingRequiredField(t *testing.T) {
	sch := map[string]any{
		"type":     "object",
		"required": []any{"name"},
	}
	_, err := Validate(sch, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, "schema validation: missing required field 'name'", err.Error())
}

func TestValidateEnum(t *testing.T) {
	sch := map[string]any{
		"type": "string",
		"enum": []any{"a", "b", "c"},
	}
	_, err := Validate(sch, "z")
	require.Error(t, err)
	assert.Equal(t, "schema enum validation failed: field $ must be one of: a, b, c", err.Error())

	_, err = Validate(sch, "b")
	require.NoError(t, err)
}

func TestValidateCoercesNumericString(t *testing.T) {
	out, err := Validate(map[string]any{"type": "number"}, "42.5")
	require.NoError(t, err)
	assert.Equal(t, 42.5, out)
}

func TestValidateNestedObject(t *testing.T) {
	sch := map[string]any{
		"type":     "object",
		"required": []any{"user"},
		"properties": map[string]any{
			"user": map[string]any{
				"type":     "object",
				"required": []any{"age"},
				"properties": map[string]any{
					"age": map[string]any{"type": "integer"},
				},
			},
		},
	}
	_, err := Validate(sch, map[string]any{"user": map[string]any{"age": "oops"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema type mismatch")
}

func TestValidateArrayItems(t *testing.T) {
	sch := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "number"},
	}
	out, err := Validate(sch, []any{"1", "2", 3.0})
	require.NoError(t, err)
	arr := out.([]any)
	assert.Equal(t, 1.0, arr[0])
	assert.Equal(t, 2.0, arr[1])
}

func TestValidateEmptySchemaPasses(t *testing.T) {
	out, err := Validate(nil, "anything")
	require.NoError(t, err)
	assert.Equal(t, "anything", out)
}
