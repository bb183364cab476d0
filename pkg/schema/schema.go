// Package schema provides the declarative parameter description shared by
// every action. A schema is built once with the constructors below and then
// rendered by independent serializers (natural JSON Schema, strict JSON
// Schema, record-typed parameter trees) and by the argument validator.
package schema

import (
	"errors"
	"fmt"
)

// Kind identifies the shape of a schema node.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindEnum    Kind = "enum"
	KindLiteral Kind = "literal"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindAny     Kind = "any"
	KindMap     Kind = "map"

	// Wrapper kinds never describe a value on their own.
	KindOptional Kind = "optional"
	KindNullable Kind = "nullable"
	KindDefault  Kind = "default"
	KindRefine   Kind = "refine"
)

// ErrUnsupportedType is returned by serializers that cannot express a kind.
var ErrUnsupportedType = errors.New("unsupported schema type")

// Node is an immutable schema description. Builder methods return copies.
type Node struct {
	kind        Kind
	description string

	values  []string
	literal any
	elem    *Node
	fields  []Field

	inner *Node
	def   any
	check func(any) error
}

// Field is a named member of an object schema.
type Field struct {
	Name   string
	Schema *Node
}

// F is shorthand for declaring an object field.
func F(name string, node *Node) Field {
	return Field{Name: name, Schema: node}
}

func String() *Node  { return &Node{kind: KindString} }
func Number() *Node  { return &Node{kind: KindNumber} }
func Integer() *Node { return &Node{kind: KindInteger} }
func Boolean() *Node { return &Node{kind: KindBoolean} }

// Any accepts every JSON value. Strict serializers reject it.
func Any() *Node { return &Node{kind: KindAny} }

// Enum restricts a string to the supplied values.
func Enum(values ...string) *Node {
	return &Node{kind: KindEnum, values: append([]string(nil), values...)}
}

// Literal accepts exactly one constant value.
func Literal(value any) *Node {
	return &Node{kind: KindLiteral, literal: value}
}

// Array describes a homogeneous list.
func Array(elem *Node) *Node {
	return &Node{kind: KindArray, elem: elem}
}

// Map describes an object with arbitrary keys and uniform values. Strict
// serializers reject it.
func Map(value *Node) *Node {
	return &Node{kind: KindMap, elem: value}
}

// Object describes a named-field record. Field order is preserved.
func Object(fields ...Field) *Node {
	return &Node{kind: KindObject, fields: append([]Field(nil), fields...)}
}

// Describe attaches a natural-language description to the node.
func (n *Node) Describe(description string) *Node {
	dup := *n
	dup.description = description
	return &dup
}

// Optional marks the value as omittable.
func (n *Node) Optional() *Node {
	return &Node{kind: KindOptional, inner: n}
}

// Nullable allows an explicit null in place of the value.
func (n *Node) Nullable() *Node {
	return &Node{kind: KindNullable, inner: n}
}

// Default supplies the value used when the field is omitted. A field with a
// default is implicitly optional.
func (n *Node) Default(value any) *Node {
	return &Node{kind: KindDefault, inner: n, def: value}
}

// Refine adds a custom check that runs after structural validation.
func (n *Node) Refine(check func(any) error) *Node {
	return &Node{kind: KindRefine, inner: n, check: check}
}

func (n *Node) Kind() Kind           { return n.kind }
func (n *Node) Values() []string     { return append([]string(nil), n.values...) }
func (n *Node) LiteralValue() any    { return n.literal }
func (n *Node) Elem() *Node          { return n.elem }
func (n *Node) Inner() *Node         { return n.inner }
func (n *Node) DefaultValue() any    { return n.def }
func (n *Node) Fields() []Field      { return append([]Field(nil), n.fields...) }
func (n *Node) IsWrapper() bool      { return isWrapper(n.kind) }
func (n *Node) hasDescription() bool { return n.description != "" }

// Description returns the first description found on the wrapper chain.
func (n *Node) Description() string {
	for cur := n; cur != nil; cur = cur.inner {
		if cur.hasDescription() {
			return cur.description
		}
		if !isWrapper(cur.kind) {
			break
		}
	}
	return ""
}

func isWrapper(kind Kind) bool {
	switch kind {
	case KindOptional, KindNullable, KindDefault, KindRefine:
		return true
	default:
		return false
	}
}

// Core strips every wrapper and returns the node that describes the value.
func Core(n *Node) *Node {
	cur := n
	for cur != nil && isWrapper(cur.kind) {
		cur = cur.inner
	}
	return cur
}

// IsNullable reports whether a nullable wrapper appears anywhere on the chain.
func IsNullable(n *Node) bool {
	return hasWrapper(n, KindNullable)
}

// IsOptional reports whether the field may be omitted, either explicitly or
// because it carries a default.
func IsOptional(n *Node) bool {
	return hasWrapper(n, KindOptional) || hasWrapper(n, KindDefault)
}

// DefaultOf returns the outermost default on the chain.
func DefaultOf(n *Node) (any, bool) {
	for cur := n; cur != nil && isWrapper(cur.kind); cur = cur.inner {
		if cur.kind == KindDefault {
			return cur.def, true
		}
	}
	return nil, false
}

// Checks collects refinement functions from the outermost inward.
func Checks(n *Node) []func(any) error {
	var out []func(any) error
	for cur := n; cur != nil && isWrapper(cur.kind); cur = cur.inner {
		if cur.kind == KindRefine && cur.check != nil {
			out = append(out, cur.check)
		}
	}
	return out
}

func hasWrapper(n *Node, kind Kind) bool {
	for cur := n; cur != nil && isWrapper(cur.kind); cur = cur.inner {
		if cur.kind == kind {
			return true
		}
	}
	return false
}

// IsRecord reports whether the node, after unwrapping, is a named-field record.
func IsRecord(n *Node) bool {
	core := Core(n)
	return core != nil && core.kind == KindObject
}

// Check verifies that the tree is well formed: arrays and maps have element
// types, enums have values, field names are unique and non-empty.
func Check(n *Node) error {
	return check(n, "$")
}

func check(n *Node, path string) error {
	if n == nil {
		return fmt.Errorf("%s: schema is nil", path)
	}
	if isWrapper(n.kind) {
		if n.inner == nil {
			return fmt.Errorf("%s: %s wrapper without inner schema", path, n.kind)
		}
		return check(n.inner, path)
	}
	switch n.kind {
	case KindEnum:
		if len(n.values) == 0 {
			return fmt.Errorf("%s: enum without values", path)
		}
	case KindArray, KindMap:
		if n.elem == nil {
			return fmt.Errorf("%s: %s without element schema", path, n.kind)
		}
		return check(n.elem, path+"[]")
	case KindObject:
		seen := make(map[string]struct{}, len(n.fields))
		for _, field := range n.fields {
			if field.Name == "" {
				return fmt.Errorf("%s: field with empty name", path)
			}
			if _, dup := seen[field.Name]; dup {
				return fmt.Errorf("%s: duplicate field %q", path, field.Name)
			}
			seen[field.Name] = struct{}{}
			if err := check(field.Schema, path+"."+field.Name); err != nil {
				return err
			}
		}
	case KindString, KindNumber, KindInteger, KindBoolean, KindLiteral, KindAny:
	default:
		return fmt.Errorf("%s: unknown kind %q", path, n.kind)
	}
	return nil
}
