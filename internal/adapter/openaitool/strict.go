package openaitool

import (
	"fmt"

	"AgentKit-Chain/pkg/schema"
)

// StrictSchema renders n in the strict function-calling dialect: every object
// lists all of its properties as required and forbids additional ones.
// Optional and nullable fields are widened with null instead of being left
// out of required. Any and Map have no strict rendering and fail with
// schema.ErrUnsupportedType.
func StrictSchema(n *schema.Node) (map[string]any, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: nil schema", schema.ErrUnsupportedType)
	}
	return strict(n, "$", schema.IsNullable(n))
}

func strict(n *schema.Node, path string, nullable bool) (map[string]any, error) {
	core := schema.Core(n)
	out := map[string]any{}

	switch core.Kind() {
	case schema.KindString, schema.KindNumber, schema.KindInteger, schema.KindBoolean:
		out["type"] = string(core.Kind())
	case schema.KindEnum:
		out["type"] = "string"
		out["enum"] = toAny(core.Values())
	case schema.KindLiteral:
		out["type"] = "string"
		out["enum"] = []any{schema.LiteralString(core.LiteralValue())}
	case schema.KindArray:
		items, err := strict(core.Elem(), path+"[]", schema.IsNullable(core.Elem()))
		if err != nil {
			return nil, err
		}
		out["type"] = "array"
		out["items"] = items
	case schema.KindObject:
		fields := core.Fields()
		props := make(map[string]any, len(fields))
		required := make([]string, 0, len(fields))
		for _, f := range fields {
			widen := schema.IsNullable(f.Schema) || schema.IsOptional(f.Schema)
			prop, err := strict(f.Schema, path+"."+f.Name, widen)
			if err != nil {
				return nil, err
			}
			props[f.Name] = prop
			required = append(required, f.Name)
		}
		out["type"] = "object"
		out["properties"] = props
		out["required"] = required
		out["additionalProperties"] = false
	default:
		return nil, fmt.Errorf("%w: %s at %s", schema.ErrUnsupportedType, core.Kind(), path)
	}

	if desc := n.Description(); desc != "" {
		out["description"] = desc
	}
	if nullable {
		withNull(out)
	}
	return out, nil
}

// withNull adds the null marker once: to the enum list for enumerations, to
// the type otherwise.
func withNull(out map[string]any) {
	if values, ok := out["enum"].([]any); ok {
		for _, v := range values {
			if v == nil {
				return
			}
		}
		out["enum"] = append(values, nil)
	}
	switch t := out["type"].(type) {
	case string:
		out["type"] = []string{t, "null"}
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
