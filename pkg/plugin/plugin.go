// Package plugin groups actions into named bundles attached to an agent.
//
// A plugin is built by a Factory that receives the agent up front, so the
// returned value's methods already close over the agent's wallet and
// connection. Hosts reach those methods through the agent's plugin lookup.
package plugin

import (
	"context"

	"AgentKit-Chain/pkg/action"
)

// Plugin is a named bundle of actions.
type Plugin interface {
	// Info returns the static metadata for the plugin.
	Info() Info
	// Actions returns the plugin's actions in the order they should be projected.
	Actions() []*action.Action
}

// Factory builds a plugin bound to one agent. It is called exactly once per
// attachment; an error aborts that plugin only.
type Factory func(agent action.Agent) (Plugin, error)

// ExternalFactory is the shape of the Factory symbol exported by plugins
// loaded from shared objects. cfg is the plugin's block from ManagerConfig.
type ExternalFactory func(agent action.Agent, cfg map[string]any) (Plugin, error)

// Starter is implemented by plugins owning background work.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by plugins holding resources.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Option modifies the behaviour of a plugin manager instance.
type Option func(*Manager)

// WithLoader overrides the default binary loader implementation.
func WithLoader(loader Loader) Option {
	return func(m *Manager) {
		if loader != nil {
			m.loader = loader
		}
	}
}

// WithIsolationStrategy sets a custom isolation policy enforcement strategy.
func WithIsolationStrategy(strategy IsolationStrategy) Option {
	return func(m *Manager) {
		if strategy != nil {
			m.isolation = strategy
		}
	}
}
