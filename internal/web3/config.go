package web3

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Chain families understood by the provider registry.
const (
	TypeSolana = "solana"
	TypeEVM    = "evm"
)

// ChainDefinitions models the structure of configs/chain.yaml.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition describes a single chain endpoint definition.
type ChainDefinition struct {
	Type        string `yaml:"type"`
	RPCURL      string `yaml:"rpc_url"`
	WSURL       string `yaml:"ws_url"`
	BatchRPCURL string `yaml:"batch_rpc_url"`
	Commitment  string `yaml:"commitment"`
	Description string `yaml:"description"`
}

// Family returns the normalised chain type; an empty type means solana.
func (d ChainDefinition) Family() string {
	t := strings.ToLower(strings.TrimSpace(d.Type))
	if t == "" {
		return TypeSolana
	}
	return t
}

// LoadChainDefinitions parses the YAML file containing chain metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}
	return ParseChainDefinitions(content)
}

// ParseChainDefinitions decodes chain metadata from YAML bytes.
func ParseChainDefinitions(content []byte) (ChainDefinitions, error) {
	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	for name, def := range defs.Chains {
		switch def.Family() {
		case TypeSolana, TypeEVM:
		default:
			return ChainDefinitions{}, fmt.Errorf("链 %s 使用了不支持的类型 %s", name, def.Type)
		}
		if strings.TrimSpace(def.RPCURL) == "" {
			return ChainDefinitions{}, fmt.Errorf("链 %s 缺少 rpc_url", name)
		}
	}
	return defs, nil
}
