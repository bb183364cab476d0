package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointMonikers(t *testing.T) {
	assert.Equal(t, rpc.DevNet_RPC, Endpoint("devnet"))
	assert.Equal(t, rpc.MainNetBeta_RPC, Endpoint("Mainnet-Beta"))
	assert.Equal(t, "http://127.0.0.1:8899", Endpoint(" http://127.0.0.1:8899 "))
}

func TestParseCommitment(t *testing.T) {
	level, err := ParseCommitment("")
	require.NoError(t, err)
	assert.Equal(t, rpc.CommitmentConfirmed, level)

	level, err = ParseCommitment("FINALIZED")
	require.NoError(t, err)
	assert.Equal(t, rpc.CommitmentFinalized, level)

	_, err = ParseCommitment("max")
	assert.Error(t, err)
}

func jsonRPCServer(t *testing.T, results map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     any    `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDialAndQuery(t *testing.T) {
	srv := jsonRPCServer(t, map[string]any{
		"getHealth":  "ok",
		"getBalance": map[string]any{"context": map[string]any{"slot": 10}, "value": 5000},
	})

	conn, err := Dial("local", srv.URL, "processed")
	require.NoError(t, err)
	assert.Equal(t, "local", conn.Name())
	assert.Equal(t, rpc.CommitmentProcessed, conn.Commitment())

	require.NoError(t, conn.Healthy(context.Background()))

	out, err := conn.GetBalance(context.Background(), solana.SystemProgramID, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), out.Value)
}

func TestDialRejectsEmptyEndpoint(t *testing.T) {
	_, err := Dial("x", "  ", "")
	assert.Error(t, err)
	_, err = Dial("x", "devnet", "eventually")
	assert.Error(t, err)
}
