package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "keypair", cfg.Wallet.Kind)
	assert.Equal(t, "mid", cfg.Agent.FeeTier)
	assert.Equal(t, 8, cfg.Agent.MaxSteps)
	assert.Equal(t, "memory", cfg.Storage.TaskStore.Driver)
	assert.Equal(t, 30, cfg.Bridge.Attestation.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Bridge.Attestation.Interval)
}

func TestLoadYAMLResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentkit.yaml")
	content := `
agent:
  sign_only: true
  fee_tier: high
  api_keys:
    jupiter: secret
wallet:
  kind: keypair
  keypair_path: keys/id.json
web3:
  chain_config: chain.yaml
  rpc_url: https://api.devnet.solana.com
task_queue:
  driver: redis
  redis:
    address: localhost:6379
server:
  auth:
    tokens:
      - name: ops
        token: Secret-Token
        scopes: [read, invoke]
bridge:
  attestation:
    max_attempts: 4
    interval: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Agent.SignOnly)
	assert.Equal(t, "high", cfg.Agent.FeeTier)
	assert.Equal(t, "secret", cfg.Agent.APIKeys["jupiter"])
	assert.Equal(t, filepath.Join(dir, "keys/id.json"), cfg.Wallet.KeypairPath)
	assert.Equal(t, filepath.Join(dir, "chain.yaml"), cfg.Web3.ChainConfig)
	assert.Equal(t, "redis", cfg.TaskQueue.Driver)
	assert.Equal(t, 4, cfg.Bridge.Attestation.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Bridge.Attestation.Interval)
	require.Len(t, cfg.Server.Auth.Tokens, 1)
	assert.Equal(t, "Secret-Token", cfg.Server.Auth.Tokens[0].Token)
	assert.Equal(t, []string{"read", "invoke"}, cfg.Server.Auth.Tokens[0].Scopes)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentkit.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"agent":{"sign_only":false,"max_steps":3}}`), 0o600))

	t.Setenv("AGENTKIT_AGENT_SIGN_ONLY", "true")
	t.Setenv("AGENTKIT_SERVER_ADDRESS", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Agent.SignOnly)
	assert.Equal(t, 3, cfg.Agent.MaxSteps)
	assert.Equal(t, ":9090", cfg.Server.Address)
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	cases := map[string]string{
		"wallet": `{"wallet":{"kind":"ledger"}}`,
		"remote": `{"wallet":{"kind":"remote"}}`,
		"store":  `{"storage":{"task_store":{"driver":"sqlite"}}}`,
		"queue":  `{"task_queue":{"driver":"kafka"}}`,
		"token":  `{"server":{"auth":{"tokens":[{"name":"ops","scopes":["read"]}]}}}`,
		"scope":  `{"server":{"auth":{"tokens":[{"token":"t","scopes":["admin"]}]}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSampleConfigLoads(t *testing.T) {
	path := filepath.Join("..", "..", "configs", "agentkit.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Server.Auth.Tokens, 2)
	assert.Equal(t, filepath.Join("..", "..", "configs", "chain.yaml"), cfg.Web3.ChainConfig)
	assert.Equal(t, "solana-devnet", cfg.Web3.DefaultChain)
	assert.False(t, cfg.Plugins.Plugins["pricebook"].Enabled)
	assert.Equal(t, filepath.Join("..", "..", "plugins"), cfg.Plugins.PluginDir)
	assert.Equal(t, "pricebook.so", cfg.Plugins.Plugins["pricebook"].Path)
}
