// Package action defines the unit every tool projection is built from: a
// named, described, schema-validated capability with a handler.
//
// Actions are constructed once with New and treated as read-only afterwards.
// The handler receives the Agent the action is attached to, so one Action
// value can be shared by every agent that loads its plugin.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"AgentKit-Chain/pkg/schema"
)

var (
	ErrInvalidAction   = errors.New("invalid action")
	ErrNotRecord       = errors.New("action schema must be an object")
	ErrDuplicateAction = errors.New("duplicate action name")
	ErrActionNotFound  = errors.New("action not found")
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Handler runs an action with arguments that already passed validation.
type Handler func(ctx context.Context, agent Agent, input Input) (any, error)

// Example documents one call. Input must validate against the action schema.
type Example struct {
	Input       map[string]any `json:"input"`
	Output      map[string]any `json:"output"`
	Explanation string         `json:"explanation"`
}

// Action describes a tool. Do not mutate an Action after New returns it.
type Action struct {
	Name        string
	Description string
	Similes     []string
	Examples    []Example
	Schema      *schema.Node
	Handler     Handler

	compiled *compiled
}

type compiled struct {
	once      sync.Once
	validator *schema.Validator
	err       error
}

// New checks the definition and compiles its argument validator.
func New(def Action) (*Action, error) {
	if !namePattern.MatchString(def.Name) {
		return nil, fmt.Errorf("%w: name %q must match %s", ErrInvalidAction, def.Name, namePattern)
	}
	if def.Description == "" {
		return nil, fmt.Errorf("%w: %s has no description", ErrInvalidAction, def.Name)
	}
	if def.Handler == nil {
		return nil, fmt.Errorf("%w: %s has no handler", ErrInvalidAction, def.Name)
	}
	a := &Action{
		Name:        def.Name,
		Description: def.Description,
		Similes:     append([]string(nil), def.Similes...),
		Examples:    append([]Example(nil), def.Examples...),
		Schema:      def.Schema,
		Handler:     def.Handler,
		compiled:    &compiled{},
	}
	validator, err := a.Validator()
	if err != nil {
		return nil, err
	}
	for i, ex := range a.Examples {
		raw, err := json.Marshal(ex.Input)
		if err != nil {
			return nil, fmt.Errorf("%w: %s example %d: %v", ErrInvalidAction, a.Name, i, err)
		}
		if _, err := validator.Parse(raw); err != nil {
			return nil, fmt.Errorf("%w: %s example %d: %v", ErrInvalidAction, a.Name, i, err)
		}
	}
	return a, nil
}

// MustNew is New for package-level definitions.
func MustNew(def Action) *Action {
	a, err := New(def)
	if err != nil {
		panic(err)
	}
	return a
}

// Validator returns the compiled argument validator. A schema that is not an
// object is rejected here. Actions built without New compile on every call.
func (a *Action) Validator() (*schema.Validator, error) {
	if a.compiled == nil {
		return a.compile()
	}
	c := a.compiled
	c.once.Do(func() { c.validator, c.err = a.compile() })
	return c.validator, c.err
}

func (a *Action) compile() (*schema.Validator, error) {
	if a.Schema == nil {
		return nil, fmt.Errorf("%w: %s has no schema", ErrNotRecord, a.Name)
	}
	if !schema.IsRecord(a.Schema) {
		return nil, fmt.Errorf("%w: %s schema is %s", ErrNotRecord, a.Name, schema.Core(a.Schema).Kind())
	}
	return schema.Compile(a.Schema)
}

// Parse validates raw JSON arguments and returns them with defaults applied.
func (a *Action) Parse(raw []byte) (Input, error) {
	v, err := a.Validator()
	if err != nil {
		return nil, err
	}
	parsed, err := v.Parse(raw)
	if err != nil {
		return nil, err
	}
	return Input(parsed), nil
}

// Run validates raw arguments and calls the handler.
func (a *Action) Run(ctx context.Context, agent Agent, raw []byte) (any, error) {
	input, err := a.Parse(raw)
	if err != nil {
		return nil, err
	}
	return a.Handler(ctx, agent, input)
}

// Find returns the action with the given name.
func Find(actions []*Action, name string) (*Action, error) {
	for _, a := range actions {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrActionNotFound, name)
}
