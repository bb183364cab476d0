// Package plugins wires the built-in plugins into a plugin manager from the
// service configuration.
package plugins

import (
	"fmt"

	"AgentKit-Chain/internal/config"
	"AgentKit-Chain/internal/plugins/account"
	"AgentKit-Chain/internal/plugins/bridge"
	"AgentKit-Chain/internal/plugins/evm"
	"AgentKit-Chain/internal/plugins/swap"
	"AgentKit-Chain/internal/plugins/token"
	"AgentKit-Chain/pkg/plugin"
)

// Names lists the built-in plugins in attachment order.
var Names = []string{account.ID, token.ID, swap.ID, bridge.ID, evm.ID}

// Deps carries what built-in plugins need beyond the agent.
type Deps struct {
	Swap   swap.Config
	Bridge bridge.Config
	Chains evm.Chains
}

// DepsFromConfig maps configuration sections onto plugin settings.
func DepsFromConfig(cfg config.Config, chains evm.Chains) Deps {
	return Deps{
		Swap: swap.Config{
			BaseURL:     cfg.Swap.Jupiter.BaseURL,
			SlippageBps: cfg.Swap.Jupiter.SlippageBps,
		},
		Bridge: bridge.Config{
			BaseURL:     cfg.Bridge.Attestation.BaseURL,
			MaxAttempts: cfg.Bridge.Attestation.MaxAttempts,
			Interval:    cfg.Bridge.Attestation.Interval,
		},
		Chains: chains,
	}
}

// Factory returns the built-in factory registered under id.
func Factory(id string, deps Deps) (plugin.Factory, error) {
	switch id {
	case account.ID:
		return account.New, nil
	case token.ID:
		return token.New, nil
	case swap.ID:
		return swap.New(deps.Swap), nil
	case bridge.ID:
		return bridge.New(deps.Bridge), nil
	case evm.ID:
		return evm.New(deps.Chains), nil
	default:
		return nil, fmt.Errorf("unknown built-in plugin %q", id)
	}
}

// Register adds the named built-ins to m. An empty list selects every
// built-in; the evm plugin is then only included when EVM chains exist.
func Register(m *plugin.Manager, names []string, deps Deps) error {
	selected := names
	if len(selected) == 0 {
		for _, id := range Names {
			if id == evm.ID && (deps.Chains == nil || len(deps.Chains.EVMChains()) == 0) {
				continue
			}
			selected = append(selected, id)
		}
	}
	for _, id := range selected {
		f, err := Factory(id, deps)
		if err != nil {
			return err
		}
		if err := m.Register(id, f, nil); err != nil {
			return err
		}
	}
	return nil
}
