// Package evm exposes read access and raw transaction relay for the EVM
// chains listed in the chain definition file.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/ethereum"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/plugin"
	"AgentKit-Chain/pkg/schema"
)

// ID is the plugin identifier.
const ID = "evm"

const weiDecimals = 18

// Chains resolves EVM clients by name. *provider.Registry satisfies it.
type Chains interface {
	EVM(name string) (web3.EVMClient, bool)
	EVMChains() []string
}

// Plugin is bound to the agent it was built for.
type Plugin struct {
	chains  Chains
	actions []*action.Action
}

var _ plugin.Plugin = (*Plugin)(nil)

// New returns a factory serving the given chains. At least one EVM chain
// must be configured.
func New(chains Chains) plugin.Factory {
	return func(action.Agent) (plugin.Plugin, error) {
		if chains == nil || len(chains.EVMChains()) == 0 {
			return nil, fmt.Errorf("evm plugin requires at least one evm chain")
		}
		p := &Plugin{chains: chains}
		p.actions = []*action.Action{p.chainInfo(), p.balance(), p.transactionCount(), p.sendRaw()}
		return p, nil
	}
}

func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:           ID,
		Name:         "EVM",
		Description:  "Balances, nonces, chain metadata and raw transaction relay on EVM chains",
		Version:      "1.0.0",
		Category:     plugin.TypeData,
		Capabilities: []plugin.Capability{plugin.CapabilityNetwork, plugin.CapabilitySend},
	}
}

func (p *Plugin) Actions() []*action.Action { return p.actions }

// Client returns the named chain, or the first configured one for "".
func (p *Plugin) Client(name string) (string, web3.EVMClient, error) {
	if strings.TrimSpace(name) == "" {
		name = p.chains.EVMChains()[0]
	}
	client, ok := p.chains.EVM(name)
	if !ok {
		return "", nil, xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("evm chain %q is not configured", name),
			xerrors.WithMetadata("available", strings.Join(p.chains.EVMChains(), ",")))
	}
	return name, client, nil
}

func chainField() schema.Field {
	return schema.F("chain", schema.String().Describe("Chain name from the chain definitions; defaults to the first EVM chain").Optional())
}

func addressField(description string) schema.Field {
	return schema.F("address", schema.String().Describe(description).Refine(func(v any) error {
		if s, _ := v.(string); !common.IsHexAddress(s) {
			return fmt.Errorf("not a hex address: %q", s)
		}
		return nil
	}))
}

func (p *Plugin) chainInfo() *action.Action {
	return action.MustNew(action.Action{
		Name:        "evm_chain_info",
		Description: "Return the chain id and latest block number of an EVM chain.",
		Similes:     []string{"ethereum block height", "evm network status"},
		Schema:      schema.Object(chainField()),
		Examples: []action.Example{{
			Input:       map[string]any{},
			Output:      map[string]any{"name": "ethereum", "chain_id": "0x1", "block_number": "0x1312d00", "notes": "mainnet"},
			Explanation: "Values are hex quantities as returned by the node.",
		}},
		Handler: func(ctx context.Context, _ action.Agent, in action.Input) (any, error) {
			_, client, err := p.Client(in.String("chain"))
			if err != nil {
				return nil, err
			}
			return client.FetchChainSnapshot(ctx)
		},
	})
}

func (p *Plugin) balance() *action.Action {
	return action.MustNew(action.Action{
		Name:        "evm_get_balance",
		Description: "Get the native balance of an address on an EVM chain, in wei and ether.",
		Similes:     []string{"eth balance", "evm balance"},
		Schema:      schema.Object(addressField("0x-prefixed account address"), chainField()),
		Examples: []action.Example{{
			Input: map[string]any{"address": "0x00000000000000000000000000000000000000aa"},
			Output: map[string]any{
				"chain":   "ethereum",
				"address": "0x00000000000000000000000000000000000000AA",
				"wei":     "1500000000000000000",
				"ether":   "1.5",
			},
			Explanation: "The address is returned in checksum form.",
		}},
		Handler: func(ctx context.Context, _ action.Agent, in action.Input) (any, error) {
			name, client, err := p.Client(in.String("chain"))
			if err != nil {
				return nil, err
			}
			addr := common.HexToAddress(in.String("address"))
			wei, err := client.Balance(ctx, addr)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"chain":   name,
				"address": addr.Hex(),
				"wei":     wei.String(),
				"ether":   FormatUnits(wei, weiDecimals),
			}, nil
		},
	})
}

func (p *Plugin) transactionCount() *action.Action {
	return action.MustNew(action.Action{
		Name:        "evm_get_transaction_count",
		Description: "Get the pending transaction count (next nonce) of an address on an EVM chain.",
		Similes:     []string{"nonce", "transaction count"},
		Schema:      schema.Object(addressField("0x-prefixed account address"), chainField()),
		Examples: []action.Example{{
			Input:       map[string]any{"address": "0x00000000000000000000000000000000000000aa", "chain": "ethereum"},
			Output:      map[string]any{"chain": "ethereum", "address": "0x00000000000000000000000000000000000000AA", "nonce": 7},
			Explanation: "The next transaction from this address must use nonce 7.",
		}},
		Handler: func(ctx context.Context, _ action.Agent, in action.Input) (any, error) {
			name, client, err := p.Client(in.String("chain"))
			if err != nil {
				return nil, err
			}
			addr := common.HexToAddress(in.String("address"))
			nonce, err := client.Nonce(ctx, addr)
			if err != nil {
				return nil, err
			}
			return map[string]any{"chain": name, "address": addr.Hex(), "nonce": nonce}, nil
		},
	})
}

func (p *Plugin) sendRaw() *action.Action {
	return action.MustNew(action.Action{
		Name: "evm_send_raw_transactions",
		Description: "Broadcast already signed EVM transactions, in order, in one batch. " +
			"Transactions are 0x-prefixed RLP or typed envelopes.",
		Similes: []string{"broadcast evm transaction", "relay signed transaction"},
		Schema: schema.Object(
			schema.F("transactions", schema.Array(schema.String().Describe("Signed transaction hex")).
				Describe("Signed transactions in submission order").
				Refine(func(v any) error {
					if items, _ := v.([]any); len(items) == 0 {
						return fmt.Errorf("at least one transaction is required")
					}
					return nil
				})),
			chainField(),
		),
		Examples: []action.Example{{
			Input:       map[string]any{"transactions": []any{"0xe580843b9aca008252089400000000000000000000000000000000000000aa8203e880250101"}},
			Output:      map[string]any{"chain": "ethereum", "hashes": []any{"0x13ba00db0397939d801daadf2c81b308194c0e04ac0662b2e8d1fc61062302e1"}},
			Explanation: "A legacy transfer of 1000 wei is relayed; the transaction hash is returned.",
		}},
		Handler: func(ctx context.Context, _ action.Agent, in action.Input) (any, error) {
			name, client, err := p.Client(in.String("chain"))
			if err != nil {
				return nil, err
			}
			raw, _ := in["transactions"].([]any)
			txs := make([]*coretypes.Transaction, 0, len(raw))
			for i, item := range raw {
				s, _ := item.(string)
				tx, err := ethereum.DecodeRawTransaction(s)
				if err != nil {
					return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("transaction %d", i))
				}
				txs = append(txs, tx)
			}
			hashes, err := client.SendBatchTransactions(ctx, txs)
			if err != nil {
				return nil, xerrors.Wrap(xerrors.CodeNetworkFailure, err, fmt.Sprintf("%d of %d transactions sent", len(hashes), len(txs)))
			}
			out := make([]string, 0, len(hashes))
			for _, h := range hashes {
				out = append(out, h.Hex())
			}
			return map[string]any{"chain": name, "hashes": out}, nil
		},
	})
}

// FormatUnits renders an integer amount with the given decimals.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(amount), scale, new(big.Int))
	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	digits := frac.String()
	digits = strings.TrimRight(strings.Repeat("0", decimals-len(digits))+digits, "0")
	return sign + whole.String() + "." + digits
}
