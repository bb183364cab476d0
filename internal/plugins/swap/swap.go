// Package swap trades tokens through the Jupiter aggregator. Jupiter returns
// a fully built transaction, which is handed to the wallet as is.
package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"AgentKit-Chain/internal/plugins/args"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/dispatch"
	"AgentKit-Chain/pkg/plugin"
	"AgentKit-Chain/pkg/schema"
	"AgentKit-Chain/pkg/wallet"
)

// ID is the plugin identifier.
const ID = "swap"

// APIKeyName is looked up in the agent's API keys and sent as x-api-key.
const APIKeyName = "jupiter"

const (
	defaultBaseURL     = "https://quote-api.jup.ag/v6"
	defaultSlippageBps = 50
	defaultTimeout     = 15 * time.Second
)

var wrappedSOL = solana.MustPublicKeyFromBase58(args.WrappedSOL)

// Config points the plugin at a Jupiter deployment.
type Config struct {
	BaseURL     string
	SlippageBps int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.SlippageBps <= 0 {
		c.SlippageBps = defaultSlippageBps
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
}

// Quote is the subset of a Jupiter quote the plugin reports. The complete
// response is forwarded to the swap endpoint untouched.
type Quote struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	SlippageBps    int    `json:"slippageBps"`

	raw json.RawMessage
}

// Plugin is bound to the agent it was built for.
type Plugin struct {
	agent   action.Agent
	cfg     Config
	actions []*action.Action
}

var _ plugin.Plugin = (*Plugin)(nil)

// New returns a factory using cfg.
func New(cfg Config) plugin.Factory {
	cfg.applyDefaults()
	return func(agent action.Agent) (plugin.Plugin, error) {
		p := &Plugin{agent: agent, cfg: cfg}
		p.actions = []*action.Action{p.tradeAction()}
		return p, nil
	}
}

func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:           ID,
		Name:         "Swap",
		Description:  "Token swaps routed through the Jupiter aggregator",
		Version:      "1.0.0",
		Category:     plugin.TypeDeFi,
		Capabilities: []plugin.Capability{plugin.CapabilityNetwork, plugin.CapabilitySign, plugin.CapabilitySend},
	}
}

func (p *Plugin) Actions() []*action.Action { return p.actions }

// Quote asks Jupiter for the best route of amount base units.
func (p *Plugin) Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps int) (*Quote, error) {
	if slippageBps <= 0 {
		slippageBps = p.cfg.SlippageBps
	}
	query := url.Values{}
	query.Set("inputMint", inputMint.String())
	query.Set("outputMint", outputMint.String())
	query.Set("amount", strconv.FormatUint(amount, 10))
	query.Set("slippageBps", strconv.Itoa(slippageBps))

	raw, err := p.call(ctx, http.MethodGet, "/quote?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("jupiter quote: %w", err)
	}
	var quote Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, fmt.Errorf("decode jupiter quote: %w", err)
	}
	if quote.OutAmount == "" {
		return nil, fmt.Errorf("jupiter quote has no route")
	}
	quote.raw = raw
	return &quote, nil
}

// Trade quotes and executes a swap of amount UI units of inputMint.
func (p *Plugin) Trade(ctx context.Context, inputMint, outputMint solana.PublicKey, amount float64, slippageBps int) (*Quote, *dispatch.Result, error) {
	return trade(ctx, p, p.agent, inputMint, outputMint, amount, slippageBps)
}

func (p *Plugin) tradeAction() *action.Action {
	return action.MustNew(action.Action{
		Name: "trade",
		Description: "Swap tokens using the Jupiter aggregator. amount is in whole units of the input token; " +
			"the input defaults to SOL.",
		Similes: []string{"swap", "buy token", "sell token", "exchange"},
		Schema: schema.Object(
			schema.F("output_mint", args.Address("Mint of the token to receive")),
			schema.F("amount", args.Positive("Amount of the input token to sell")),
			schema.F("input_mint", args.Address("Mint of the token to sell").Default(args.WrappedSOL)),
			schema.F("slippage_bps", schema.Integer().Describe("Maximum slippage in basis points").Optional().Refine(func(v any) error {
				if bps, _ := v.(int64); bps < 1 || bps > 10_000 {
					return fmt.Errorf("slippage_bps must be between 1 and 10000")
				}
				return nil
			})),
		),
		Examples: []action.Example{{
			Input: map[string]any{"output_mint": args.USDC, "amount": 0.1},
			Output: map[string]any{
				"input_mint":       args.WrappedSOL,
				"output_mint":      args.USDC,
				"in_amount":        "100000000",
				"out_amount":       "15234000",
				"price_impact_pct": "0.0001",
				"signature":        "PuBeGCjxDjMagcNpaicn2xfaWXW9LELnTJJTurVdJ1g6os6uVsPJr3WroRuDoegKXc9iZhrS69CvaoXoWLYKzhS",
				"signatures":       []any{"PuBeGCjxDjMagcNpaicn2xfaWXW9LELnTJJTurVdJ1g6os6uVsPJr3WroRuDoegKXc9iZhrS69CvaoXoWLYKzhS"},
			},
			Explanation: "Sell 0.1 SOL for USDC with the configured slippage.",
		}},
		Handler: func(ctx context.Context, ag action.Agent, in action.Input) (any, error) {
			input, err := in.PublicKey("input_mint")
			if err != nil {
				return nil, err
			}
			output, err := in.PublicKey("output_mint")
			if err != nil {
				return nil, err
			}
			quote, res, err := trade(ctx, p, ag, input, output, in.Float("amount"), int(in.Int("slippage_bps")))
			if err != nil {
				return nil, err
			}
			out, err := res.Artifact()
			if err != nil {
				return nil, err
			}
			out["input_mint"] = quote.InputMint
			out["output_mint"] = quote.OutputMint
			out["in_amount"] = quote.InAmount
			out["out_amount"] = quote.OutAmount
			out["price_impact_pct"] = quote.PriceImpactPct
			return out, nil
		},
	})
}

func trade(ctx context.Context, p *Plugin, ag action.Agent, input, output solana.PublicKey, amount float64, slippageBps int) (*Quote, *dispatch.Result, error) {
	if input.Equals(output) {
		return nil, nil, fmt.Errorf("input and output mint are the same")
	}
	decimals, err := decimalsOf(ctx, ag, input)
	if err != nil {
		return nil, nil, err
	}
	units, err := args.ToBaseUnits(amount, decimals)
	if err != nil {
		return nil, nil, err
	}
	quote, err := p.Quote(ctx, input, output, units, slippageBps)
	if err != nil {
		return nil, nil, err
	}
	tx, err := p.swapTransaction(ctx, quote, ag.Wallet().PublicKey())
	if err != nil {
		return nil, nil, err
	}
	res, err := ag.Execute(ctx, dispatch.SingleTransaction{Transaction: tx})
	if err != nil {
		return nil, nil, err
	}
	return quote, res, nil
}

func (p *Plugin) swapTransaction(ctx context.Context, quote *Quote, user solana.PublicKey) (*solana.Transaction, error) {
	body, err := json.Marshal(map[string]any{
		"quoteResponse":             quote.raw,
		"userPublicKey":             user.String(),
		"wrapAndUnwrapSol":          true,
		"dynamicComputeUnitLimit":   true,
		"prioritizationFeeLamports": "auto",
	})
	if err != nil {
		return nil, err
	}
	raw, err := p.call(ctx, http.MethodPost, "/swap", body)
	if err != nil {
		return nil, fmt.Errorf("jupiter swap: %w", err)
	}
	var decoded struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode jupiter swap: %w", err)
	}
	if decoded.SwapTransaction == "" {
		return nil, fmt.Errorf("jupiter swap returned no transaction")
	}
	return wallet.DecodeTransaction(decoded.SwapTransaction)
}

func (p *Plugin) call(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := p.agent.Config().APIKey(APIKeyName); key != "" {
		req.Header.Set("x-api-key", key)
	}
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return payload, nil
}

func decimalsOf(ctx context.Context, ag action.Agent, mint solana.PublicKey) (uint8, error) {
	if mint.Equals(wrappedSOL) {
		return 9, nil
	}
	conn := ag.Connection()
	if conn == nil {
		return 0, dispatch.ErrNoConnection
	}
	supply, err := conn.GetTokenSupply(ctx, mint, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("read mint %s: %w", mint, err)
	}
	return supply.Value.Decimals, nil
}
