package plugin

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManagerConfig lists shared-object plugins and the isolation policy applied
// to any plugin without its own.
type ManagerConfig struct {
	// PluginDir is joined with relative plugin paths.
	PluginDir string                  `yaml:"pluginDir" mapstructure:"plugin_dir"`
	Defaults  IsolationPolicy         `yaml:"defaults" mapstructure:"defaults"`
	Plugins   map[string]PluginConfig `yaml:"plugins" mapstructure:"plugins"`
}

// PluginConfig is the block for one shared-object plugin. Config is handed
// to the plugin's ExternalFactory unchanged.
type PluginConfig struct {
	Enabled bool             `yaml:"enabled" mapstructure:"enabled"`
	Path    string           `yaml:"path" mapstructure:"path"`
	Config  map[string]any   `yaml:"config" mapstructure:"config"`
	Policy  *IsolationPolicy `yaml:"policy" mapstructure:"policy"`
}

// IsolationPolicy governs which capabilities a plugin may declare.
type IsolationPolicy struct {
	AllowedCapabilities []Capability `yaml:"allowedCapabilities" mapstructure:"allowed_capabilities"`
	DeniedCapabilities  []Capability `yaml:"deniedCapabilities" mapstructure:"denied_capabilities"`
}

// Empty reports whether the policy neither allows nor denies anything.
func (p IsolationPolicy) Empty() bool {
	return len(p.AllowedCapabilities) == 0 && len(p.DeniedCapabilities) == 0
}

// Merge fills the lists p leaves empty from other.
func (p IsolationPolicy) Merge(other IsolationPolicy) IsolationPolicy {
	if len(p.AllowedCapabilities) == 0 {
		p.AllowedCapabilities = other.AllowedCapabilities
	}
	if len(p.DeniedCapabilities) == 0 {
		p.DeniedCapabilities = other.DeniedCapabilities
	}
	return p
}

// Check rejects unknown capability names and capabilities that are both
// allowed and denied.
func (p IsolationPolicy) Check() error {
	for _, c := range append(slices.Clone(p.AllowedCapabilities), p.DeniedCapabilities...) {
		if !KnownCapability(c) {
			return fmt.Errorf("unknown capability %q", c)
		}
	}
	for _, c := range p.AllowedCapabilities {
		if slices.Contains(p.DeniedCapabilities, c) {
			return fmt.Errorf("capability %s is both allowed and denied", c)
		}
	}
	return nil
}

// KnownCapability reports whether c is one of the declared capabilities.
func KnownCapability(c Capability) bool {
	switch c {
	case CapabilityNetwork, CapabilitySign, CapabilitySend, CapabilityFilesystem:
		return true
	default:
		return false
	}
}

// LoadManagerConfig reads a standalone YAML plugin file.
func LoadManagerConfig(path string) (ManagerConfig, error) {
	var cfg ManagerConfig
	if path == "" {
		return cfg, errors.New("config path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read plugin config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal plugin config: %w", err)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]PluginConfig{}
	}
	return cfg, cfg.Validate()
}

// Enabled returns the IDs of enabled plugins in load order.
func (c ManagerConfig) Enabled() []string {
	ids := make([]string, 0, len(c.Plugins))
	for id, p := range c.Plugins {
		if p.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Validate checks every policy and requires a path for enabled plugins.
func (c ManagerConfig) Validate() error {
	if err := c.Defaults.Check(); err != nil {
		return fmt.Errorf("default policy: %w", err)
	}
	for id, p := range c.Plugins {
		if strings.TrimSpace(id) == "" {
			return errors.New("plugin id cannot be empty")
		}
		if p.Policy != nil {
			if err := p.Policy.Check(); err != nil {
				return fmt.Errorf("plugin %s policy: %w", id, err)
			}
		}
		if p.Enabled && strings.TrimSpace(p.Path) == "" {
			return fmt.Errorf("plugin %s path cannot be empty when enabled", id)
		}
	}
	return nil
}
