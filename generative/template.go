package generative

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// MissingVariableError reports a template placeholder with no matching value
// in the render context, caught before any provider call is made.
type MissingVariableError struct {
	Path string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable: %s", e.Path)
}

// Render substitutes every {{path.to.field}} placeholder in tmpl by walking
// data (a JSON-shaped map[string]any tree) along the dot-separated path. It
// returns a *MissingVariableError without rendering anything if any
// placeholder cannot be resolved, so a bad prompt fails before a model call
// is ever issued.
func Render(tmpl string, data map[string]any) (string, error) {
	var firstErr error
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		if firstErr != nil {
			return m
		}
		path := placeholderPattern.FindStringSubmatch(m)[1]
		val, ok := lookup(data, path)
		if !ok {
			firstErr = &MissingVariableError{Path: path}
			return m
		}
		return stringify(val)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func lookup(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := m[p]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// stringify renders a looked-up template value as text. Scalars render in
// their natural form; objects and arrays stringify via JSON rather than Go's
// %v syntax, so a map value renders as {"a":1} instead of map[a:1].
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case map[string]any, []any:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", t)
	}
}
