// Package account exposes the agent wallet itself: its address, message
// signing and submission of transactions built elsewhere.
package account

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/dispatch"
	"AgentKit-Chain/pkg/plugin"
	"AgentKit-Chain/pkg/schema"
	"AgentKit-Chain/pkg/wallet"
)

// ID is the plugin identifier.
const ID = "wallet"

// Plugin is bound to the agent it was built for.
type Plugin struct {
	agent   action.Agent
	actions []*action.Action
}

var _ plugin.Plugin = (*Plugin)(nil)

// New is a plugin.Factory.
func New(agent action.Agent) (plugin.Plugin, error) {
	return &Plugin{
		agent:   agent,
		actions: []*action.Action{getAddress, signMessage, submitTransactions},
	}, nil
}

func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:           ID,
		Name:         "Wallet",
		Description:  "Address lookup, message signing and submission of prepared transactions",
		Version:      "1.0.0",
		Category:     plugin.TypeWallet,
		Capabilities: []plugin.Capability{plugin.CapabilitySign, plugin.CapabilitySend},
	}
}

func (p *Plugin) Actions() []*action.Action { return p.actions }

// Address returns the bound agent's wallet address.
func (p *Plugin) Address() solana.PublicKey { return p.agent.Wallet().PublicKey() }

// SignMessage signs message with the bound agent's wallet.
func (p *Plugin) SignMessage(ctx context.Context, message []byte) (solana.Signature, error) {
	return sign(ctx, p.agent, message)
}

// Submit dispatches already built transactions with the bound agent.
func (p *Plugin) Submit(ctx context.Context, txs ...*solana.Transaction) (*dispatch.Result, error) {
	return submit(ctx, p.agent, txs)
}

var getAddress = action.MustNew(action.Action{
	Name:        "get_wallet_address",
	Description: "Return the public address of the agent's wallet.",
	Similes:     []string{"wallet address", "my address", "public key"},
	Schema:      schema.Object(),
	Examples: []action.Example{{
		Input:       map[string]any{},
		Output:      map[string]any{"address": "9C6hybhQ6Aycep9jaUnP6uL9ZYvDjUp1aSkFWPUFJtpj"},
		Explanation: "The wallet address is returned as base58.",
	}},
	Handler: func(_ context.Context, ag action.Agent, _ action.Input) (any, error) {
		return map[string]any{"address": ag.Wallet().PublicKey().String()}, nil
	},
})

var signMessage = action.MustNew(action.Action{
	Name:        "sign_message",
	Description: "Sign an arbitrary message with the agent's wallet and return the detached signature.",
	Similes:     []string{"sign text", "prove ownership"},
	Schema: schema.Object(
		schema.F("message", schema.String().Describe("Message to sign")),
		schema.F("encoding", schema.Enum("utf8", "base64").Describe("How message is encoded").Default("utf8")),
	),
	Examples: []action.Example{{
		Input: map[string]any{"message": "hello"},
		Output: map[string]any{
			"signature": "37GedKAoaDKpKKKMomW3JhqqL59f28efft13o2jUmJACX39Zc8XvzT1asCfLvZs3eW3hwDA6ho7AJcyUfi3fyw4h",
			"address":   "9C6hybhQ6Aycep9jaUnP6uL9ZYvDjUp1aSkFWPUFJtpj",
		},
		Explanation: "Sign the UTF-8 bytes of the message.",
	}, {
		Input: map[string]any{"message": "aGVsbG8=", "encoding": "base64"},
		Output: map[string]any{
			"signature": "37GedKAoaDKpKKKMomW3JhqqL59f28efft13o2jUmJACX39Zc8XvzT1asCfLvZs3eW3hwDA6ho7AJcyUfi3fyw4h",
			"address":   "9C6hybhQ6Aycep9jaUnP6uL9ZYvDjUp1aSkFWPUFJtpj",
		},
		Explanation: "Binary payloads are passed as base64; the decoded bytes are signed.",
	}},
	Handler: func(ctx context.Context, ag action.Agent, in action.Input) (any, error) {
		payload := []byte(in.String("message"))
		if in.String("encoding") == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(in.String("message"))
			if err != nil {
				return nil, fmt.Errorf("message is not valid base64: %w", err)
			}
			payload = decoded
		}
		sig, err := sign(ctx, ag, payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{"signature": sig.String(), "address": ag.Wallet().PublicKey().String()}, nil
	},
})

// exampleTransfer is an unsigned legacy transfer paid by the documented
// wallet address.
const exampleTransfer = "AQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAAEDebVWLo/mVPlAeLES6KmLp5AfhTrmlb7X4OORC60ElmSBOXcOqH0XX1ajVGbDTH7My42KkbTuN6Jd9g9bj8mzlAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQwCAAAAQEIPAAAAAAA="

var submitTransactions = action.MustNew(action.Action{
	Name: "submit_transactions",
	Description: "Sign and, unless the agent is sign-only, submit base64 encoded transactions in order. " +
		"Sign-only agents return the signed transactions instead of signatures.",
	Similes: []string{"send transactions", "broadcast", "execute prepared transaction"},
	Examples: []action.Example{{
		Input: map[string]any{"transactions": []any{exampleTransfer}},
		Output: map[string]any{
			"signature":  "PuBeGCjxDjMagcNpaicn2xfaWXW9LELnTJJTurVdJ1g6os6uVsPJr3WroRuDoegKXc9iZhrS69CvaoXoWLYKzhS",
			"signatures": []any{"PuBeGCjxDjMagcNpaicn2xfaWXW9LELnTJJTurVdJ1g6os6uVsPJr3WroRuDoegKXc9iZhrS69CvaoXoWLYKzhS"},
		},
		Explanation: "An unsigned transfer of 1000000 lamports is signed by the wallet and submitted.",
	}},
	Schema: schema.Object(
		schema.F("transactions", schema.Array(schema.String().Describe("Base64 wire transaction")).
			Describe("Transactions to sign, in submission order").
			Refine(func(v any) error {
				if items, _ := v.([]any); len(items) == 0 {
					return fmt.Errorf("at least one transaction is required")
				}
				return nil
			})),
	),
	Handler: func(ctx context.Context, ag action.Agent, in action.Input) (any, error) {
		raw, _ := in["transactions"].([]any)
		txs := make([]*solana.Transaction, 0, len(raw))
		for i, item := range raw {
			s, _ := item.(string)
			tx, err := wallet.DecodeTransaction(s)
			if err != nil {
				return nil, fmt.Errorf("transaction %d: %w", i, err)
			}
			txs = append(txs, tx)
		}
		res, err := submit(ctx, ag, txs)
		if err != nil {
			return nil, err
		}
		return res.Artifact()
	},
})

func sign(ctx context.Context, ag action.Agent, message []byte) (solana.Signature, error) {
	if len(message) == 0 {
		return solana.Signature{}, fmt.Errorf("message is empty")
	}
	if err := wallet.Require(ag.Wallet(), wallet.CapabilitySignMessage); err != nil {
		return solana.Signature{}, err
	}
	return ag.Wallet().SignMessage(ctx, message)
}

// submit uses the single-transaction path for one item and the batch path
// otherwise.
func submit(ctx context.Context, ag action.Agent, txs []*solana.Transaction) (*dispatch.Result, error) {
	switch len(txs) {
	case 0:
		return nil, dispatch.ErrEmptyRequest
	case 1:
		return ag.Execute(ctx, dispatch.SingleTransaction{Transaction: txs[0]})
	default:
		return ag.Execute(ctx, dispatch.BatchTransactions{Transactions: txs})
	}
}
