package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"AgentKit-Chain/internal/config"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/ethereum"
	"AgentKit-Chain/internal/web3/solana"
)

// Registry manages chain connections keyed by human readable names.
type Registry struct {
	defaultChain string
	solana       map[string]*solana.Conn
	evm          map[string]web3.EVMClient
}

// NewRegistry loads chain definitions and instantiates concrete clients.
// When the definition file names no Solana chain, web3.rpc_url becomes the
// "default" Solana chain.
func NewRegistry(ctx context.Context, cfg config.Web3Config) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, err
	}
	return FromDefinitions(ctx, defs, cfg)
}

// FromDefinitions builds the registry from already parsed definitions.
func FromDefinitions(ctx context.Context, defs web3.ChainDefinitions, cfg config.Web3Config) (*Registry, error) {
	r := &Registry{
		solana: make(map[string]*solana.Conn),
		evm:    make(map[string]web3.EVMClient),
	}
	for _, name := range sortedNames(defs.Chains) {
		chain := defs.Chains[name]
		switch chain.Family() {
		case web3.TypeSolana:
			commitment := chain.Commitment
			if commitment == "" {
				commitment = cfg.Commitment
			}
			conn, err := solana.Dial(name, chain.RPCURL, commitment)
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("初始化链 %s 失败: %w", name, err)
			}
			r.solana[name] = conn
		case web3.TypeEVM:
			client, err := ethereum.NewClient(ctx, ethereum.Config{
				Name:        name,
				RPCURL:      chain.RPCURL,
				BatchRPCURL: chain.BatchRPCURL,
				Notes:       chain.Description,
			})
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("初始化链 %s 失败: %w", name, err)
			}
			r.evm[name] = client
		}
	}

	if len(r.solana) == 0 && strings.TrimSpace(cfg.RPCURL) != "" {
		conn, err := solana.Dial("default", cfg.RPCURL, cfg.Commitment)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.solana["default"] = conn
		if cfg.DefaultChain == "" {
			cfg.DefaultChain = "default"
		}
	}

	if len(r.solana) == 0 {
		r.Close()
		return nil, errors.New("未配置任何 Solana RPC 端点")
	}

	r.defaultChain = cfg.DefaultChain
	if r.defaultChain == "" {
		r.defaultChain = sortedNames(r.solana)[0]
	}
	if _, ok := r.solana[r.defaultChain]; !ok {
		r.Close()
		return nil, fmt.Errorf("默认链 %s 不是已配置的 Solana 链", r.defaultChain)
	}
	return r, nil
}

// Default returns the Solana connection the agent runs against.
func (r *Registry) Default() *solana.Conn {
	if r == nil {
		return nil
	}
	return r.solana[r.defaultChain]
}

// Solana returns the Solana connection identified by name.
func (r *Registry) Solana(name string) (*solana.Conn, bool) {
	if r == nil {
		return nil, false
	}
	conn, ok := r.solana[name]
	return conn, ok
}

// EVM returns the EVM client identified by name.
func (r *Registry) EVM(name string) (web3.EVMClient, bool) {
	if r == nil {
		return nil, false
	}
	client, ok := r.evm[name]
	return client, ok
}

// EVMChains returns the registered EVM chain names.
func (r *Registry) EVMChains() []string {
	if r == nil {
		return nil
	}
	return sortedNames(r.evm)
}

// Chains returns every registered chain name.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	names := append(sortedNames(r.solana), sortedNames(r.evm)...)
	sort.Strings(names)
	return names
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, conn := range r.solana {
		_ = conn.Close()
		delete(r.solana, name)
	}
	for name, client := range r.evm {
		if client != nil {
			client.Close()
		}
		delete(r.evm, name)
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
