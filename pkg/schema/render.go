package schema

import (
	"encoding/json"
	"fmt"
)

// JSONSchema renders the node as a plain JSON Schema document. Optional
// fields are left out of "required", nullable values become type unions and
// defaults are emitted verbatim. Kinds without a strict equivalent (any, map)
// are rendered permissively.
func JSONSchema(n *Node) map[string]any {
	core := Core(n)
	if core == nil {
		return map[string]any{}
	}
	out := renderCore(core)
	if IsNullable(n) {
		out = widenNull(out)
	}
	if desc := n.Description(); desc != "" {
		out["description"] = desc
	}
	if def, ok := DefaultOf(n); ok {
		out["default"] = def
	}
	return out
}

// MarshalJSON renders the natural JSON Schema form.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(JSONSchema(n))
}

func renderCore(core *Node) map[string]any {
	switch core.kind {
	case KindString, KindNumber, KindInteger, KindBoolean:
		return map[string]any{"type": string(core.kind)}
	case KindEnum:
		values := make([]any, 0, len(core.values))
		for _, v := range core.values {
			values = append(values, v)
		}
		return map[string]any{"type": "string", "enum": values}
	case KindLiteral:
		out := map[string]any{"const": core.literal}
		if t := literalType(core.literal); t != "" {
			out["type"] = t
		}
		return out
	case KindArray:
		return map[string]any{"type": "array", "items": JSONSchema(core.elem)}
	case KindMap:
		return map[string]any{"type": "object", "additionalProperties": JSONSchema(core.elem)}
	case KindObject:
		props := make(map[string]any, len(core.fields))
		required := make([]string, 0, len(core.fields))
		for _, field := range core.fields {
			props[field.Name] = JSONSchema(field.Schema)
			if !IsOptional(field.Schema) {
				required = append(required, field.Name)
			}
		}
		out := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			out["required"] = required
		}
		return out
	default:
		return map[string]any{}
	}
}

func widenNull(out map[string]any) map[string]any {
	if c, ok := out["const"]; ok {
		delete(out, "const")
		out["enum"] = []any{c}
	}
	if enum, ok := out["enum"].([]any); ok {
		out["enum"] = appendNull(enum)
	}
	switch t := out["type"].(type) {
	case string:
		out["type"] = []any{t, "null"}
		return out
	case nil:
		return map[string]any{"anyOf": []any{out, map[string]any{"type": "null"}}}
	default:
		return out
	}
}

func appendNull(values []any) []any {
	for _, v := range values {
		if v == nil {
			return values
		}
	}
	return append(values, nil)
}

func literalType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64, json.Number:
		return "number"
	case nil:
		return "null"
	default:
		return ""
	}
}

// LiteralString formats a literal for serializers that only accept strings.
func LiteralString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
