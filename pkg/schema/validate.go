package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("schema validation failed")

// ValidationError lists every problem found while parsing arguments.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "invalid arguments"
	}
	return "invalid arguments: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(issues ...string) *ValidationError {
	return &ValidationError{Issues: issues}
}

// Validator checks raw arguments against a compiled schema and converts them
// into typed Go values.
type Validator struct {
	node     *Node
	compiled *gojsonschema.Schema
}

// Compile checks the tree and compiles its JSON Schema rendering once.
func Compile(n *Node) (*Validator, error) {
	if err := Check(n); err != nil {
		return nil, err
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(JSONSchema(n)))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{node: n, compiled: compiled}, nil
}

// Node returns the schema the validator was compiled from.
func (v *Validator) Node() *Node { return v.node }

// Parse validates a JSON document. Empty input and a literal null are treated
// as an empty object so tools without parameters can be called bare.
func (v *Validator) Parse(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, invalid("arguments are not valid JSON: " + err.Error())
	}
	return v.ParseValue(doc)
}

// ParseValue validates an already decoded document.
func (v *Validator) ParseValue(doc any) (map[string]any, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	doc = prune(v.node, doc)

	result, err := v.compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, invalid(err.Error())
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		return nil, invalid(issues...)
	}

	value, issues := normalize(v.node, doc, "$")
	if len(issues) > 0 {
		return nil, invalid(issues...)
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, invalid("arguments must be a JSON object")
	}
	return obj, nil
}

// prune drops explicit nulls sent for optional fields that do not accept
// null, so callers that fill every key with null still validate. It also
// maps the string form of a non-string literal back to the literal, since
// string-only tool formats publish literals as LiteralString.
func prune(n *Node, value any) any {
	core := Core(n)
	if core == nil {
		return value
	}
	switch core.kind {
	case KindLiteral:
		return literalFromString(core.literal, value)
	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return value
		}
		out := make(map[string]any, len(obj))
		for k, v := range obj {
			out[k] = v
		}
		for _, field := range core.fields {
			current, present := out[field.Name]
			if !present {
				continue
			}
			if current == nil && IsOptional(field.Schema) && !IsNullable(field.Schema) {
				delete(out, field.Name)
				continue
			}
			out[field.Name] = prune(field.Schema, current)
		}
		return out
	case KindArray:
		items, ok := value.([]any)
		if !ok {
			return value
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = prune(core.elem, item)
		}
		return out
	default:
		return value
	}
}

func literalFromString(literal, value any) any {
	text, ok := value.(string)
	if !ok || text != LiteralString(literal) {
		return value
	}
	switch literalType(literal) {
	case "integer", "number":
		return json.Number(text)
	case "string":
		return value
	default:
		return literal
	}
}

func normalize(n *Node, value any, path string) (any, []string) {
	var issues []string
	core := Core(n)
	if value != nil && core != nil {
		value, issues = normalizeCore(core, value, path)
	}
	if value == nil {
		return nil, issues
	}
	for _, check := range Checks(n) {
		if err := check(value); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", path, err))
		}
	}
	return value, issues
}

func normalizeCore(core *Node, value any, path string) (any, []string) {
	switch core.kind {
	case KindInteger:
		i, err := toInt64(value)
		if err != nil {
			return value, []string{fmt.Sprintf("%s: %v", path, err)}
		}
		return i, nil
	case KindNumber:
		f, err := toFloat64(value)
		if err != nil {
			return value, []string{fmt.Sprintf("%s: %v", path, err)}
		}
		return f, nil
	case KindArray:
		items, _ := value.([]any)
		out := make([]any, len(items))
		var issues []string
		for i, item := range items {
			v, sub := normalize(core.elem, item, fmt.Sprintf("%s[%d]", path, i))
			out[i] = v
			issues = append(issues, sub...)
		}
		return out, issues
	case KindMap:
		obj, _ := value.(map[string]any)
		out := make(map[string]any, len(obj))
		var issues []string
		for k, item := range obj {
			v, sub := normalize(core.elem, item, path+"."+k)
			out[k] = v
			issues = append(issues, sub...)
		}
		return out, issues
	case KindObject:
		obj, _ := value.(map[string]any)
		out := make(map[string]any, len(obj))
		for k, v := range obj {
			out[k] = plain(v)
		}
		var issues []string
		for _, field := range core.fields {
			raw, present := obj[field.Name]
			if !present {
				if def, ok := DefaultOf(field.Schema); ok {
					out[field.Name] = def
				}
				continue
			}
			v, sub := normalize(field.Schema, raw, path+"."+field.Name)
			out[field.Name] = v
			issues = append(issues, sub...)
		}
		return out, issues
	default:
		return plain(value), nil
	}
}

// plain replaces json.Number values with float64 or int64.
func plain(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = plain(item)
		}
		return out
	default:
		return value
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		// 1.0 and 5e2 are integers in JSON Schema.
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("integer %s out of range", v)
		}
		return toInt64(f)
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case json.Number:
		return v.Float64()
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", value)
	}
}
