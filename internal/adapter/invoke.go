// Package adapter holds what the tool projections share: the call
// trampoline that validates arguments, runs the handler and turns every
// failure into a structured result instead of an error.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	errs "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/logger"
)

// Observer records tool calls, typically as metrics.
type Observer interface {
	ObserveTool(adapter, action, status string, elapsed time.Duration)
}

// Option configures a Trampoline.
type Option func(*Trampoline)

// WithObserver attaches a call observer.
func WithObserver(observer Observer) Option {
	return func(t *Trampoline) { t.observer = observer }
}

// Result is the outcome of one tool call. Exactly one of Value and Error is
// meaningful.
type Result struct {
	Value any
	Error *errs.Payload
}

// OK reports whether the handler succeeded.
func (r Result) OK() bool { return r.Error == nil }

// JSON renders the result for text based hosts. String values pass through
// unquoted.
func (r Result) JSON() string {
	if r.Error != nil {
		raw, _ := json.Marshal(r.Error)
		return string(raw)
	}
	if s, ok := r.Value.(string); ok {
		return s
	}
	raw, err := json.Marshal(r.Value)
	if err != nil {
		fallback, _ := json.Marshal(errs.PayloadOf(fmt.Errorf("encode result: %w", err)))
		return string(fallback)
	}
	return string(raw)
}

// Trampoline runs actions for one adapter against one agent.
type Trampoline struct {
	adapter  string
	agent    action.Agent
	observer Observer
	log      *slog.Logger
}

// NewTrampoline binds an adapter name and agent.
func NewTrampoline(adapterName string, agent action.Agent, opts ...Option) *Trampoline {
	t := &Trampoline{
		adapter: adapterName,
		agent:   agent,
		log:     logger.Named("adapter").With(slog.String("adapter", adapterName)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Agent returns the bound agent.
func (t *Trampoline) Agent() action.Agent { return t.agent }

// Invoke validates raw arguments against the action schema, runs the handler
// and converts errors and panics into an error payload.
func (t *Trampoline) Invoke(ctx context.Context, a *action.Action, raw []byte) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("tool handler panicked", "action", a.Name, "panic", r, "stack", string(debug.Stack()))
			res = failure(fmt.Errorf("handler panic: %v", r))
		}
		status := "success"
		if res.Error != nil {
			status = string(res.Error.Code)
			t.log.Warn("tool call failed", "action", a.Name, "code", res.Error.Code, "error", res.Error.Message)
		}
		if t.observer != nil {
			t.observer.ObserveTool(t.adapter, a.Name, status, time.Since(start))
		}
	}()

	input, err := a.Parse(raw)
	if err != nil {
		return failure(err)
	}
	value, err := a.Handler(ctx, t.agent, input)
	if err != nil {
		return failure(err)
	}
	return Result{Value: value}
}

// InvokeValue is Invoke for hosts that hand over decoded arguments.
func (t *Trampoline) InvokeValue(ctx context.Context, a *action.Action, args any) Result {
	if args == nil {
		return t.Invoke(ctx, a, nil)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return failure(fmt.Errorf("encode arguments: %w", err))
	}
	return t.Invoke(ctx, a, raw)
}

func failure(err error) Result {
	payload := errs.PayloadOf(err)
	return Result{Error: &payload}
}
