// Package token covers native SOL and SPL token balances, transfers, devnet
// airdrops and new mint deployment.
package token

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	splToken "github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"AgentKit-Chain/internal/plugins/args"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/dispatch"
	"AgentKit-Chain/pkg/plugin"
	"AgentKit-Chain/pkg/schema"
)

// ID is the plugin identifier.
const ID = "token"

// NativeMint is how balances and transfers of SOL itself are labelled.
const NativeMint = "SOL"

const (
	nativeDecimals = 9
	mintSize       = 82
	commitment     = rpc.CommitmentConfirmed
)

// Balance is the result of a balance lookup.
type Balance struct {
	Owner    string `json:"owner"`
	Mint     string `json:"mint"`
	Balance  string `json:"balance"`
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

// Plugin is bound to the agent it was built for.
type Plugin struct {
	agent   action.Agent
	actions []*action.Action
}

var _ plugin.Plugin = (*Plugin)(nil)

// New is a plugin.Factory. The agent needs a chain connection.
func New(agent action.Agent) (plugin.Plugin, error) {
	if agent.Connection() == nil {
		return nil, fmt.Errorf("token plugin requires a chain connection")
	}
	return &Plugin{
		agent:   agent,
		actions: []*action.Action{getBalance, transfer, requestFaucetFunds, deployToken},
	}, nil
}

func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:           ID,
		Name:         "Token",
		Description:  "SOL and SPL token balances, transfers, airdrops and mint deployment",
		Version:      "1.0.0",
		Category:     plugin.TypeToken,
		Capabilities: []plugin.Capability{plugin.CapabilitySign, plugin.CapabilitySend},
	}
}

func (p *Plugin) Actions() []*action.Action { return p.actions }

// Balance looks up the balance of owner for mint. A zero mint means SOL.
func (p *Plugin) Balance(ctx context.Context, owner, mint solana.PublicKey) (*Balance, error) {
	return balanceOf(ctx, p.agent.Connection(), owner, mint)
}

// Transfer moves amount (in UI units) of mint to the recipient. A zero mint
// means SOL.
func (p *Plugin) Transfer(ctx context.Context, to, mint solana.PublicKey, amount float64) (*dispatch.Result, error) {
	return send(ctx, p.agent, to, mint, amount)
}

var getBalance = action.MustNew(action.Action{
	Name:        "get_balance",
	Description: "Get the SOL balance, or the SPL token balance when a mint is given, of the agent's wallet or another owner.",
	Similes:     []string{"check balance", "how much SOL", "token balance", "portfolio"},
	Schema: schema.Object(
		schema.F("mint", args.Address("Token mint; omit for SOL").Optional()),
		schema.F("owner", args.Address("Wallet to inspect; defaults to the agent's wallet").Optional()),
	),
	Examples: []action.Example{{
		Input: map[string]any{},
		Output: map[string]any{
			"owner":    "9C6hybhQ6Aycep9jaUnP6uL9ZYvDjUp1aSkFWPUFJtpj",
			"mint":     NativeMint,
			"balance":  "1.5",
			"amount":   "1500000000",
			"decimals": 9,
		},
		Explanation: "The agent's wallet holds 1.5 SOL.",
	}, {
		Input: map[string]any{"mint": args.USDC},
		Output: map[string]any{
			"owner":    "9C6hybhQ6Aycep9jaUnP6uL9ZYvDjUp1aSkFWPUFJtpj",
			"mint":     args.USDC,
			"balance":  "2.5",
			"amount":   "2500000",
			"decimals": 6,
		},
		Explanation: "The associated USDC account of the wallet holds 2.5 USDC.",
	}},
	Handler: func(ctx context.Context, ag action.Agent, in action.Input) (any, error) {
		owner := ag.Wallet().PublicKey()
		if in.Has("owner") {
			pk, err := in.PublicKey("owner")
			if err != nil {
				return nil, err
			}
			owner = pk
		}
		var mint solana.PublicKey
		if in.Has("mint") {
			pk, err := in.PublicKey("mint")
			if err != nil {
				return nil, err
			}
			mint = pk
		}
		return balanceOf(ctx, ag.Connection(), owner, mint)
	},
})

var transfer = action.MustNew(action.Action{
	Name: "transfer",
	Description: "Transfer SOL, or an SPL token when a mint is given, from the agent's wallet. " +
		"The recipient's associated token account is created when it does not exist.",
	Similes: []string{"send SOL", "send tokens", "pay", "transfer funds"},
	Schema: schema.Object(
		schema.F("to", args.Address("Recipient wallet address")),
		schema.F("amount", args.Positive("Amount in whole token units, e.g. 0.5")),
		schema.F("mint", args.Address("Token mint; omit for SOL").Optional()),
	),
	Examples: []action.Example{{
		Input: map[string]any{"to": "9hSR6S7WPtxmTojgo6GG3k4yDPecgJY292j7xrsUGWBu", "amount": 0.5},
		Output: map[string]any{
			"to":         "9hSR6S7WPtxmTojgo6GG3k4yDPecgJY292j7xrsUGWBu",
			"mint":       NativeMint,
			"amount":     "500000000",
			"signature":  "<signature>",
			"signatures": []any{"<signature>"},
		},
		Explanation: "Send 0.5 SOL; amount in the output is in lamports.",
	}, {
		Input: map[string]any{"to": "9hSR6S7WPtxmTojgo6GG3k4yDPecgJY292j7xrsUGWBu", "amount": 1.25, "mint": args.USDC},
		Output: map[string]any{
			"to":         "9hSR6S7WPtxmTojgo6GG3k4yDPecgJY292j7xrsUGWBu",
			"mint":       args.USDC,
			"amount":     "1250000",
			"signature":  "<signature>",
			"signatures": []any{"<signature>"},
		},
		Explanation: "Send 1.25 USDC, which has 6 decimals.",
	}},
	Handler: func(ctx context.Context, ag action.Agent, in action.Input) (any, error) {
		to, err := in.PublicKey("to")
		if err != nil {
			return nil, err
		}
		var mint solana.PublicKey
		if in.Has("mint") {
			if mint, err = in.PublicKey("mint"); err != nil {
				return nil, err
			}
		}
		plan, err := planTransfer(ctx, ag, to, mint, in.Float("amount"))
		if err != nil {
			return nil, err
		}
		res, err := ag.Execute(ctx, dispatch.RawInstructions{Instructions: plan.instructions})
		if err != nil {
			return nil, err
		}
		out, err := res.Artifact()
		if err != nil {
			return nil, err
		}
		out["to"] = to.String()
		out["mint"] = mintLabel(mint)
		out["amount"] = strconv.FormatUint(plan.units, 10)
		return out, nil
	},
})

var requestFaucetFunds = action.MustNew(action.Action{
	Name:        "request_faucet_funds",
	Description: "Request a SOL airdrop to the agent's wallet. Only devnet, testnet and local validators honour it.",
	Similes:     []string{"airdrop", "faucet", "get test SOL"},
	Schema: schema.Object(
		schema.F("amount", args.Positive("SOL to request").Default(1.0)),
	),
	Examples: []action.Example{{
		Input: map[string]any{},
		Output: map[string]any{
			"address":   "9C6hybhQ6Aycep9jaUnP6uL9ZYvDjUp1aSkFWPUFJtpj",
			"lamports":  "1000000000",
			"signature": "<signature>",
		},
		Explanation: "One SOL is requested by default.",
	}},
	Handler: func(ctx context.Context, ag action.Agent, in action.Input) (any, error) {
		lamports, err := args.ToBaseUnits(in.Float("amount"), nativeDecimals)
		if err != nil {
			return nil, err
		}
		owner := ag.Wallet().PublicKey()
		sig, err := ag.Connection().RequestAirdrop(ctx, owner, lamports, commitment)
		if err != nil {
			return nil, fmt.Errorf("request airdrop: %w", err)
		}
		return map[string]any{
			"address":   owner.String(),
			"lamports":  strconv.FormatUint(lamports, 10),
			"signature": sig.String(),
		}, nil
	},
})

var deployToken = action.MustNew(action.Action{
	Name: "deploy_token",
	Description: "Create a new SPL token mint with the agent's wallet as mint and freeze authority. " +
		"The new mint account co-signs the creating transaction.",
	Similes: []string{"create token", "launch token", "new mint"},
	Schema: schema.Object(
		schema.F("decimals", schema.Integer().Describe("Decimal places of the token").Default(int64(9)).Refine(func(v any) error {
			if d, _ := v.(int64); d < 0 || d > 9 {
				return fmt.Errorf("decimals must be between 0 and 9")
			}
			return nil
		})),
	),
	Examples: []action.Example{{
		Input: map[string]any{"decimals": 6},
		Output: map[string]any{
			"mint":       "<mint address>",
			"decimals":   6,
			"signature":  "<signature>",
			"signatures": []any{"<signature>"},
		},
		Explanation: "A fresh mint with 6 decimals is created and initialised in one transaction.",
	}},
	Handler: func(ctx context.Context, ag action.Agent, in action.Input) (any, error) {
		decimals := uint8(in.Int("decimals"))
		mint, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate mint key: %w", err)
		}
		payer := ag.Wallet().PublicKey()
		rent, err := ag.Connection().GetMinimumBalanceForRentExemption(ctx, mintSize, commitment)
		if err != nil {
			return nil, fmt.Errorf("rent exemption: %w", err)
		}
		res, err := ag.Execute(ctx, dispatch.RawInstructions{
			Instructions: []solana.Instruction{
				system.NewCreateAccountInstruction(rent, mintSize, solana.TokenProgramID, payer, mint.PublicKey()).Build(),
				splToken.NewInitializeMintInstruction(decimals, payer, payer, mint.PublicKey(), solana.SysVarRentPubkey).Build(),
			},
			Signers: []solana.PrivateKey{mint},
		})
		if err != nil {
			return nil, err
		}
		out, err := res.Artifact()
		if err != nil {
			return nil, err
		}
		out["mint"] = mint.PublicKey().String()
		out["decimals"] = decimals
		return out, nil
	},
})

type transferPlan struct {
	instructions []solana.Instruction
	units        uint64
}

func planTransfer(ctx context.Context, ag action.Agent, to, mint solana.PublicKey, amount float64) (*transferPlan, error) {
	from := ag.Wallet().PublicKey()
	if mint.IsZero() {
		lamports, err := args.ToBaseUnits(amount, nativeDecimals)
		if err != nil {
			return nil, err
		}
		return &transferPlan{
			instructions: []solana.Instruction{system.NewTransferInstruction(lamports, from, to).Build()},
			units:        lamports,
		}, nil
	}

	conn := ag.Connection()
	supply, err := conn.GetTokenSupply(ctx, mint, commitment)
	if err != nil {
		return nil, fmt.Errorf("read mint %s: %w", mint, err)
	}
	decimals := supply.Value.Decimals
	units, err := args.ToBaseUnits(amount, decimals)
	if err != nil {
		return nil, err
	}
	source, _, err := solana.FindAssociatedTokenAddress(from, mint)
	if err != nil {
		return nil, err
	}
	dest, _, err := solana.FindAssociatedTokenAddress(to, mint)
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction
	if _, err := conn.GetTokenAccountBalance(ctx, dest, commitment); err != nil {
		if !accountMissing(err) {
			return nil, fmt.Errorf("read recipient token account: %w", err)
		}
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(from, to, mint).Build())
	}
	instructions = append(instructions,
		splToken.NewTransferCheckedInstruction(units, decimals, source, mint, dest, from, nil).Build())
	return &transferPlan{instructions: instructions, units: units}, nil
}

func balanceOf(ctx context.Context, conn action.Connection, owner, mint solana.PublicKey) (*Balance, error) {
	if conn == nil {
		return nil, dispatch.ErrNoConnection
	}
	if mint.IsZero() {
		res, err := conn.GetBalance(ctx, owner, commitment)
		if err != nil {
			return nil, fmt.Errorf("get balance: %w", err)
		}
		return &Balance{
			Owner:    owner.String(),
			Mint:     NativeMint,
			Balance:  args.FromBaseUnits(res.Value, nativeDecimals),
			Amount:   strconv.FormatUint(res.Value, 10),
			Decimals: nativeDecimals,
		}, nil
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	res, err := conn.GetTokenAccountBalance(ctx, ata, commitment)
	if err != nil {
		if !accountMissing(err) {
			return nil, fmt.Errorf("get token balance: %w", err)
		}
		// No associated account yet: report zero with the mint's decimals.
		supply, serr := conn.GetTokenSupply(ctx, mint, commitment)
		if serr != nil {
			return nil, fmt.Errorf("read mint %s: %w", mint, serr)
		}
		return &Balance{Owner: owner.String(), Mint: mint.String(), Balance: "0", Amount: "0", Decimals: supply.Value.Decimals}, nil
	}
	units, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("token amount %q: %w", res.Value.Amount, err)
	}
	return &Balance{
		Owner:    owner.String(),
		Mint:     mint.String(),
		Balance:  args.FromBaseUnits(units, res.Value.Decimals),
		Amount:   res.Value.Amount,
		Decimals: res.Value.Decimals,
	}, nil
}

func send(ctx context.Context, ag action.Agent, to, mint solana.PublicKey, amount float64) (*dispatch.Result, error) {
	plan, err := planTransfer(ctx, ag, to, mint, amount)
	if err != nil {
		return nil, err
	}
	return ag.Execute(ctx, dispatch.RawInstructions{Instructions: plan.instructions})
}

func accountMissing(err error) bool {
	return err != nil && strings.Contains(err.Error(), "could not find account")
}

func mintLabel(mint solana.PublicKey) string {
	if mint.IsZero() {
		return NativeMint
	}
	return mint.String()
}
