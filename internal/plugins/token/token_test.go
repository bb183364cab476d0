package token

import (
	"context"
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

const recipient = "9hSR6S7WPtxmTojgo6GG3k4yDPecgJY292j7xrsUGWBu"

var usdc = solana.MustPublicKeyFromBase58(args.USDC)

func setup(t *testing.T, signOnly bool) (*agent.Agent, *plugintest.Conn) {
	t.Helper()
	conn := plugintest.NewConn()
	owner := plugintest.Key().PublicKey()
	conn.Balances[owner] = 1_500_000_000
	conn.Supplies[usdc] = rpc.UiTokenAmount{Amount: "1000000000000", Decimals: 6}
	conn.TokenBalances[ata(t, owner, usdc)] = rpc.UiTokenAmount{Amount: "2500000", Decimals: 6}

	ag := plugintest.NewAgent(t, conn, signOnly)
	require.NoError(t, ag.Use(New))
	return ag, conn
}

func ata(t *testing.T, owner, mint solana.PublicKey) solana.PublicKey {
	t.Helper()
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	return addr
}

func programs(tx *solana.Transaction) []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(tx.Message.Instructions))
	for _, inst := range tx.Message.Instructions {
		out = append(out, tx.Message.AccountKeys[inst.ProgramIDIndex])
	}
	return out
}

func TestExamplesReplay(t *testing.T) {
	ag, _ := setup(t, false)
	for _, act := range ag.Actions() {
		plugintest.ReplayExamples(t, ag, act.Name)
	}
}

func TestRequiresConnection(t *testing.T) {
	ag := plugintest.NewAgent(t, nil, false)
	err := ag.Use(New)
	require.Error(t, err)
	_, lookupErr := ag.Action("get_balance")
	assert.Error(t, lookupErr)
}

func TestBalanceOfMissingTokenAccountIsZero(t *testing.T) {
	ag, _ := setup(t, false)
	p, err := agent.PluginAs[*Plugin](ag, ID)
	require.NoError(t, err)

	other := solana.MustPublicKeyFromBase58(recipient)
	bal, err := p.Balance(context.Background(), other, usdc)
	require.NoError(t, err)
	assert.Equal(t, &Balance{Owner: recipient, Mint: args.USDC, Balance: "0", Amount: "0", Decimals: 6}, bal)
}

func TestSPLTransferCreatesRecipientAccountOnlyWhenMissing(t *testing.T) {
	ag, conn := setup(t, false)
	p, err := agent.PluginAs[*Plugin](ag, ID)
	require.NoError(t, err)
	to := solana.MustPublicKeyFromBase58(recipient)

	_, err = p.Transfer(context.Background(), to, usdc, 1)
	require.NoError(t, err)
	require.Equal(t, 1, conn.SentCount())
	assert.Contains(t, programs(conn.Sent[0]), solana.SPLAssociatedTokenAccountProgramID)
	assert.Contains(t, programs(conn.Sent[0]), solana.TokenProgramID)

	conn.TokenBalances[ata(t, to, usdc)] = rpc.UiTokenAmount{Amount: "1000000", Decimals: 6}
	_, err = p.Transfer(context.Background(), to, usdc, 1)
	require.NoError(t, err)
	require.Equal(t, 2, conn.SentCount())
	assert.NotContains(t, programs(conn.Sent[1]), solana.SPLAssociatedTokenAccountProgramID)
}

func TestTransferUnknownMintFails(t *testing.T) {
	ag, conn := setup(t, false)
	_, err := ag.Invoke(context.Background(), "transfer",
		[]byte(`{"to":"`+recipient+`","amount":1,"mint":"`+args.WrappedSOL+`"}`))
	require.Error(t, err)
	assert.Zero(t, conn.SentCount())
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	ag, _ := setup(t, false)
	_, err := ag.Invoke(context.Background(), "transfer", []byte(`{"to":"`+recipient+`","amount":0}`))
	assert.Error(t, err)
}

func TestSignOnlyTransferReturnsSignedTransaction(t *testing.T) {
	ag, conn := setup(t, true)
	out, err := ag.Invoke(context.Background(), "transfer", []byte(`{"to":"`+recipient+`","amount":0.25}`))
	require.NoError(t, err)

	res := out.(map[string]any)
	assert.Equal(t, "250000000", res["amount"])
	signed := res["signed_transactions"].([]string)
	require.Len(t, signed, 1)
	tx, err := wallet.DecodeTransaction(signed[0])
	require.NoError(t, err)
	assert.NoError(t, tx.VerifySignatures())
	assert.Contains(t, programs(tx), solana.SystemProgramID)
	assert.Zero(t, conn.SentCount())
}

func TestDeployTokenCoSignsWithMint(t *testing.T) {
	ag, conn := setup(t, false)
	out, err := ag.Invoke(context.Background(), "deploy_token", []byte(`{"decimals":2}`))
	require.NoError(t, err)

	res := out.(map[string]any)
	mint := solana.MustPublicKeyFromBase58(res["mint"].(string))
	require.Equal(t, 1, conn.SentCount())
	tx := conn.Sent[0]
	assert.Equal(t, uint8(2), tx.Message.Header.NumRequiredSignatures)
	assert.True(t, wallet.FullySigned(tx))
	assert.NoError(t, tx.VerifySignatures())
	assert.Contains(t, tx.Message.AccountKeys, mint)

	_, err = ag.Invoke(context.Background(), "deploy_token", []byte(`{"decimals":12}`))
	assert.Error(t, err)
}

func TestFaucetCreditsWallet(t *testing.T) {
	ag, conn := setup(t, false)
	_, err := ag.Invoke(context.Background(), "request_faucet_funds", []byte(`{"amount":2}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000_000), conn.Airdrops[plugintest.Key().PublicKey()])
}
