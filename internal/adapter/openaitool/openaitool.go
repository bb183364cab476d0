// Package openaitool projects actions into strict JSON-Schema function tools
// for chat-completion style hosts and executes the resulting tool calls.
package openaitool

import (
	"context"
	"fmt"

	"AgentKit-Chain/internal/adapter"
	errs "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/pkg/action"
)

// Name identifies this projection in logs and metrics.
const Name = "openai"

// Toolset holds the function definitions and the actions behind them.
type Toolset struct {
	defs       []llm.ToolDefinition
	actions    map[string]*action.Action
	projection action.Projection
	trampoline *adapter.Trampoline
}

// New translates every projected action. A schema using a kind the strict
// dialect cannot express fails the whole toolset.
func New(agent action.Agent, actions []*action.Action, opts ...adapter.Option) (*Toolset, error) {
	projection := action.Project(actions)
	ts := &Toolset{
		defs:       make([]llm.ToolDefinition, 0, len(projection.Actions)),
		actions:    make(map[string]*action.Action, len(projection.Actions)),
		projection: projection,
		trampoline: adapter.NewTrampoline(Name, agent, opts...),
	}
	for _, a := range projection.Actions {
		params, err := StrictSchema(a.Schema)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", a.Name, err)
		}
		if params["type"] != "object" {
			return nil, fmt.Errorf("action %s: %w", a.Name, action.ErrNotRecord)
		}
		ts.defs = append(ts.defs, llm.ToolDefinition{
			Name:        a.Name,
			Description: adapter.Truncate(action.Describe(a), adapter.MaxDescriptionBytes),
			Parameters:  params,
			Strict:      true,
		})
		ts.actions[a.Name] = a
	}
	return ts, nil
}

// Definitions returns the function tools in projection order.
func (t *Toolset) Definitions() []llm.ToolDefinition {
	return append([]llm.ToolDefinition(nil), t.defs...)
}

// Dropped lists actions left out by the projection cap.
func (t *Toolset) Dropped() []string { return t.projection.Dropped }

// Call executes one tool call and returns the JSON text to feed back to the
// model. Unknown tools and failures come back as error payloads.
func (t *Toolset) Call(ctx context.Context, call llm.ToolCall) string {
	return t.Invoke(ctx, call.Name, call.Arguments).JSON()
}

// Invoke is Call returning the structured result.
func (t *Toolset) Invoke(ctx context.Context, name, arguments string) adapter.Result {
	a, ok := t.actions[name]
	if !ok {
		payload := errs.PayloadOf(fmt.Errorf("%w: %s", action.ErrActionNotFound, name))
		return adapter.Result{Error: &payload}
	}
	return t.trampoline.Invoke(ctx, a, []byte(arguments))
}
