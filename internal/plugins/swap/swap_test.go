package swap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/internal/plugins/args"
	"AgentKit-Chain/internal/plugins/plugintest"
	"AgentKit-Chain/pkg/wallet"
)

// unsignedTransfer is a legacy transfer paid by plugintest.Address.
const unsignedTransfer = "AQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAAEDebVWLo/mVPlAeLES6KmLp5AfhTrmlb7X4OORC60ElmSBOXcOqH0XX1ajVGbDTH7My42KkbTuN6Jd9g9bj8mzlAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQwCAAAAQEIPAAAAAAA="

type jupiter struct {
	mu       sync.Mutex
	queries  []map[string]string
	apiKeys  []string
	swapUser string
	fail     bool
}

func (j *jupiter) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		j.mu.Lock()
		defer j.mu.Unlock()
		q := r.URL.Query()
		j.queries = append(j.queries, map[string]string{
			"inputMint":   q.Get("inputMint"),
			"outputMint":  q.Get("outputMint"),
			"amount":      q.Get("amount"),
			"slippageBps": q.Get("slippageBps"),
		})
		j.apiKeys = append(j.apiKeys, r.Header.Get("x-api-key"))
		if j.fail {
			http.Error(w, `{"error":"no route"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"inputMint":      q.Get("inputMint"),
			"outputMint":     q.Get("outputMint"),
			"inAmount":       q.Get("amount"),
			"outAmount":      "15234000",
			"priceImpactPct": "0.0001",
			"slippageBps":    50,
			"routePlan":      []any{map[string]any{"percent": 100}},
		})
	})
	mux.HandleFunc("/swap", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			QuoteResponse map[string]any `json:"quoteResponse"`
			UserPublicKey string         `json:"userPublicKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, ok := body.QuoteResponse["routePlan"]; !ok {
			t.Errorf("swap request lost the quote route plan")
		}
		j.mu.Lock()
		j.swapUser = body.UserPublicKey
		j.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"swapTransaction": unsignedTransfer, "lastValidBlockHeight": 100})
	})
	return mux
}

func setup(t *testing.T, signOnly bool) (*agent.Agent, *plugintest.Conn, *jupiter) {
	t.Helper()
	j := &jupiter{}
	srv := httptest.NewServer(j.handler(t))
	t.Cleanup(srv.Close)

	conn := plugintest.NewConn()
	conn.Supplies[solana.MustPublicKeyFromBase58(args.USDC)] = rpc.UiTokenAmount{Amount: "1", Decimals: 6}
	ag := plugintest.NewAgent(t, conn, signOnly)
	require.NoError(t, ag.Use(New(Config{BaseURL: srv.URL + "/"})))
	return ag, conn, j
}

func TestExamplesReplay(t *testing.T) {
	ag, _, j := setup(t, false)
	plugintest.ReplayExamples(t, ag, "trade")
	assert.Equal(t, plugintest.Address, j.swapUser)
}

func TestTradeQuotesInBaseUnits(t *testing.T) {
	ag, conn, j := setup(t, false)
	_, err := ag.Invoke(context.Background(), "trade",
		[]byte(`{"input_mint":"`+args.USDC+`","output_mint":"`+args.WrappedSOL+`","amount":2.5,"slippage_bps":100}`))
	require.NoError(t, err)

	require.Len(t, j.queries, 1)
	assert.Equal(t, map[string]string{
		"inputMint":   args.USDC,
		"outputMint":  args.WrappedSOL,
		"amount":      "2500000",
		"slippageBps": "100",
	}, j.queries[0])
	assert.Equal(t, 1, conn.SentCount())
}

func TestTradeSignOnlyReturnsSignedSwap(t *testing.T) {
	ag, conn, _ := setup(t, true)
	out, err := ag.Invoke(context.Background(), "trade", []byte(`{"output_mint":"`+args.USDC+`","amount":1}`))
	require.NoError(t, err)

	signed := out.(map[string]any)["signed_transactions"].([]string)
	require.Len(t, signed, 1)
	tx, err := wallet.DecodeTransaction(signed[0])
	require.NoError(t, err)
	assert.NoError(t, tx.VerifySignatures())
	assert.Zero(t, conn.SentCount())
}

func TestTradeSendsAPIKey(t *testing.T) {
	j := &jupiter{}
	srv := httptest.NewServer(j.handler(t))
	defer srv.Close()

	conn := plugintest.NewConn()
	base := plugintest.NewAgent(t, conn, false)
	ag := agent.New(agent.Config{APIKeys: map[string]string{APIKeyName: "secret"}}, base.Wallet(), conn)
	require.NoError(t, ag.Use(New(Config{BaseURL: srv.URL})))

	_, err := ag.Invoke(context.Background(), "trade", []byte(`{"output_mint":"`+args.USDC+`","amount":1}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"secret"}, j.apiKeys)
}

func TestTradeReportsQuoteFailure(t *testing.T) {
	ag, conn, j := setup(t, false)
	j.fail = true
	_, err := ag.Invoke(context.Background(), "trade", []byte(`{"output_mint":"`+args.USDC+`","amount":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Zero(t, conn.SentCount())
}

func TestTradeRejectsSameMint(t *testing.T) {
	ag, _, _ := setup(t, false)
	_, err := ag.Invoke(context.Background(), "trade", []byte(`{"output_mint":"`+args.WrappedSOL+`","amount":1}`))
	assert.Error(t, err)

	_, err = ag.Invoke(context.Background(), "trade", []byte(`{"output_mint":"`+args.USDC+`","amount":1,"slippage_bps":20000}`))
	assert.Error(t, err)
}
