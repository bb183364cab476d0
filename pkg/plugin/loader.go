package plugin

import (
	"errors"
	"fmt"
	goplugin "plugin"

	"AgentKit-Chain/pkg/action"
)

// FactorySymbol is the exported name looked up in plugin shared objects.
const FactorySymbol = "Factory"

// Loader resolves plugin binaries into factories.
type Loader interface {
	Load(path string) (ExternalFactory, error)
}

// GoPluginLoader uses the Go standard library plugin mechanism to dynamically load modules.
type GoPluginLoader struct{}

// Load opens the shared object and resolves its Factory symbol.
func (GoPluginLoader) Load(path string) (ExternalFactory, error) {
	if path == "" {
		return nil, errors.New("plugin path cannot be empty")
	}
	so, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}
	symbol, err := so.Lookup(FactorySymbol)
	if err != nil {
		return nil, err
	}
	return asFactory(symbol)
}

func asFactory(symbol any) (ExternalFactory, error) {
	switch f := symbol.(type) {
	case ExternalFactory:
		return f, nil
	case *ExternalFactory:
		if f == nil || *f == nil {
			return nil, errors.New("factory symbol is nil")
		}
		return *f, nil
	case func(action.Agent, map[string]any) (Plugin, error):
		return f, nil
	default:
		return nil, fmt.Errorf("factory symbol has type %T", symbol)
	}
}
