// Package config loads the AgentKit runtime configuration from a JSON or YAML
// file with environment overrides under the AGENTKIT_ prefix.
package config
