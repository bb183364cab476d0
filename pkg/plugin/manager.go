package plugin

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"AgentKit-Chain/pkg/action"
)

// Manager keeps the ordered list of plugin factories an agent should attach,
// and checks every built plugin against its isolation policy.
type Manager struct {
	mu        sync.RWMutex
	order     []string
	registry  map[string]*entry
	loader    Loader
	isolation IsolationStrategy
	defaults  IsolationPolicy
}

type entry struct {
	mu       sync.Mutex
	id       string
	factory  Factory
	policy   IsolationPolicy
	external bool
	source   string
	state    State
	info     Info
	err      error
}

// NewManager constructs a manager and loads the enabled external plugins.
func NewManager(cfg ManagerConfig, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		registry:  make(map[string]*entry),
		loader:    GoPluginLoader{},
		isolation: NewIsolationStrategy(nil),
		defaults:  cfg.Defaults,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadConfigured(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// Register adds a built-in factory under id.
func (m *Manager) Register(id string, f Factory, policy *IsolationPolicy) error {
	return m.add(id, f, policy, false, "builtin")
}

// Load resolves a shared object and registers its factory with cfg bound.
func (m *Manager) Load(id, path string, cfg map[string]any, policy *IsolationPolicy) error {
	if path == "" {
		return errors.New("plugin path cannot be empty")
	}
	ext, err := m.loader.Load(path)
	if err != nil {
		return fmt.Errorf("load plugin from %s: %w", path, err)
	}
	cfg = cloneConfig(cfg)
	f := func(agent action.Agent) (Plugin, error) { return ext(agent, cloneConfig(cfg)) }
	return m.add(id, f, policy, true, path)
}

func (m *Manager) add(id string, f Factory, policy *IsolationPolicy, external bool, source string) error {
	if id == "" {
		return errors.New("plugin id cannot be empty")
	}
	if f == nil {
		return errors.New("plugin factory cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.registry[id]; exists {
		return fmt.Errorf("plugin %s already registered", id)
	}
	m.registry[id] = &entry{
		id:       id,
		factory:  f,
		policy:   MergePolicies(m.defaults, policy),
		external: external,
		source:   source,
		state:    StateRegistered,
	}
	m.order = append(m.order, id)
	return nil
}

// Factories returns the registered factories in registration order, each
// wrapped with the isolation checks for its entry.
func (m *Manager) Factories() []Factory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Factory, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.registry[id].build(m.isolation))
	}
	return out
}

func (e *entry) build(isolation IsolationStrategy) Factory {
	return func(agent action.Agent) (Plugin, error) {
		p, err := e.instantiate(agent, isolation)
		e.mu.Lock()
		defer e.mu.Unlock()
		e.err = err
		if err != nil {
			e.state = StateFailed
			return nil, err
		}
		e.state = StateInitialised
		e.info = p.Info()
		return p, nil
	}
}

func (e *entry) instantiate(agent action.Agent, isolation IsolationStrategy) (Plugin, error) {
	p, err := e.factory(agent)
	if err != nil {
		return nil, fmt.Errorf("initialise plugin %s: %w", e.id, err)
	}
	if p == nil {
		return nil, fmt.Errorf("initialise plugin %s: factory returned nil", e.id)
	}
	info := p.Info()
	if info.ID != e.id {
		return nil, fmt.Errorf("plugin id mismatch: %q != %q", info.ID, e.id)
	}
	if e.external {
		if err := EnsurePolicy(info, e.policy); err != nil {
			return nil, err
		}
	}
	if err := isolation.Validate(info, e.policy); err != nil {
		return nil, err
	}
	return p, nil
}

// Status describes one managed plugin.
type Status struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	State  State  `json:"state"`
	Info   Info   `json:"info"`
	Error  string `json:"error,omitempty"`
}

// Statuses reports every registered plugin sorted by id.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.registry))
	for _, e := range m.registry {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		s := Status{ID: e.id, Source: e.source, State: e.state, Info: e.info}
		if e.err != nil {
			s.Error = e.err.Error()
		}
		e.mu.Unlock()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// State returns the lifecycle state of a plugin.
func (m *Manager) State(id string) (State, error) {
	m.mu.RLock()
	e, ok := m.registry[id]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("plugin %s not registered", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

func (m *Manager) loadConfigured(cfg ManagerConfig) error {
	for _, id := range cfg.Enabled() {
		pluginCfg := cfg.Plugins[id]
		path := pluginCfg.Path
		if !filepath.IsAbs(path) && cfg.PluginDir != "" {
			path = filepath.Join(cfg.PluginDir, path)
		}
		if err := m.Load(id, path, pluginCfg.Config, pluginCfg.Policy); err != nil {
			return err
		}
	}
	return nil
}

func cloneConfig(cfg map[string]any) map[string]any {
	cp := make(map[string]any, len(cfg))
	for k, v := range cfg {
		cp[k] = v
	}
	return cp
}
