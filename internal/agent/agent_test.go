package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/dispatch"
	"AgentKit-Chain/pkg/plugin"
	"AgentKit-Chain/pkg/schema"
	"AgentKit-Chain/pkg/wallet"
)

type testPlugin struct {
	id      string
	agent   action.Agent
	actions []*action.Action
}

func (p *testPlugin) Info() plugin.Info         { return plugin.Info{ID: p.id, Name: p.id} }
func (p *testPlugin) Actions() []*action.Action { return p.actions }
func (p *testPlugin) Address() solana.PublicKey { return p.agent.Wallet().PublicKey() }

func named(name string) *action.Action {
	return action.MustNew(action.Action{
		Name:        name,
		Description: "test action " + name,
		Schema:      schema.Object(),
		Handler: func(_ context.Context, ag action.Agent, _ action.Input) (any, error) {
			return ag.Config().SignOnly, nil
		},
	})
}

func factory(id string, names ...string) plugin.Factory {
	return func(ag action.Agent) (plugin.Plugin, error) {
		p := &testPlugin{id: id, agent: ag}
		for _, n := range names {
			p.actions = append(p.actions, named(n))
		}
		return p, nil
	}
}

func newKeypair(t *testing.T) *wallet.Keypair {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return wallet.NewKeypair(key)
}

func TestUseMergesActionsInOrder(t *testing.T) {
	ag := New(Config{}, newKeypair(t), nil)
	require.NoError(t, ag.Use(factory("token", "get_balance", "transfer"), factory("swap", "trade")))

	names := []string{}
	for _, a := range ag.Actions() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"get_balance", "transfer", "trade"}, names)
	assert.Len(t, ag.Plugins(), 2)

	tp, err := PluginAs[*testPlugin](ag, "token")
	require.NoError(t, err)
	assert.Equal(t, ag.Wallet().PublicKey(), tp.Address())

	_, err = PluginAs[*testPlugin](ag, "missing")
	assert.Equal(t, xerrors.CodeNotFound, xerrors.CodeOf(err))
}

func TestDuplicateNamesRejectWholeBatch(t *testing.T) {
	ag := New(Config{}, newKeypair(t), nil)
	require.NoError(t, ag.Use(factory("base", "get_balance")))

	err := ag.Use(factory("a", "transfer", "trade"), factory("b", "stake", "trade"))
	require.Error(t, err)
	assert.ErrorIs(t, err, action.ErrDuplicateAction)
	assert.Equal(t, xerrors.CodeDuplicateAction, xerrors.CodeOf(err))

	for _, name := range []string{"transfer", "stake", "trade"} {
		_, err := ag.Action(name)
		assert.ErrorIs(t, err, action.ErrActionNotFound, name)
	}
	_, ok := ag.Plugin("a")
	assert.False(t, ok)
	assert.Len(t, ag.Actions(), 1)

	err = ag.Use(factory("c", "get_balance"))
	assert.ErrorIs(t, err, action.ErrDuplicateAction)
}

func TestInitFailureSkipsOnlyThatPlugin(t *testing.T) {
	ag := New(Config{}, newKeypair(t), nil)
	broken := func(action.Agent) (plugin.Plugin, error) { return nil, errors.New("missing api key") }

	err := ag.Use(factory("token", "get_balance"), broken, factory("swap", "trade"))
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeRegistrationFailed, xerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "missing api key")
	assert.Len(t, ag.Actions(), 2)
}

func TestInvokeSeesDerivedConfig(t *testing.T) {
	ag := New(Config{}, newKeypair(t), nil)
	require.NoError(t, ag.Use(factory("cfg", "sign_only_flag")))

	out, err := ag.Invoke(context.Background(), "sign_only_flag", nil)
	require.NoError(t, err)
	assert.Equal(t, false, out)

	derived := ag.WithSignOnly(true)
	out, err = derived.Invoke(context.Background(), "sign_only_flag", nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
	assert.False(t, ag.Config().SignOnly)
	assert.Len(t, derived.Actions(), 1)

	_, err = ag.Invoke(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, action.ErrActionNotFound)
}

type recordingSubmitter struct {
	sent int
}

func (r *recordingSubmitter) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	r.sent++
	return tx.Signatures[0], nil
}

func prebuilt(t *testing.T, payer solana.PublicKey) *solana.Transaction {
	t.Helper()
	to, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(5_000, payer, to.PublicKey()).Build()},
		solana.Hash{4},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	return tx
}

func TestExecuteSingleTransactionModes(t *testing.T) {
	submitter := &recordingSubmitter{}
	w := newKeypair(t).Connect(submitter, rpc.TransactionOpts{})

	signOnly := New(Config{SignOnly: true}, w, nil)
	res, err := signOnly.Execute(context.Background(), dispatch.SingleTransaction{Transaction: prebuilt(t, w.PublicKey())})
	require.NoError(t, err)
	assert.False(t, res.Submitted())
	require.Len(t, res.Transactions, 1)
	assert.NoError(t, res.Transactions[0].VerifySignatures())
	assert.Zero(t, submitter.sent)

	sending := signOnly.WithSignOnly(false)
	res, err = sending.Execute(context.Background(), dispatch.SingleTransaction{Transaction: prebuilt(t, w.PublicKey())})
	require.NoError(t, err)
	assert.True(t, res.Submitted())
	assert.NotEmpty(t, res.Signature.String())
	assert.Equal(t, 1, submitter.sent)
}

func TestExecuteWithoutSendCapability(t *testing.T) {
	kp := newKeypair(t)
	ag := New(Config{}, kp, nil)
	tx := prebuilt(t, kp.PublicKey())

	_, err := ag.Execute(context.Background(), dispatch.SingleTransaction{Transaction: tx})
	assert.ErrorIs(t, err, wallet.ErrCapabilityMissing)
	assert.Empty(t, tx.Signatures)

	swapped := ag.WithWallet(kp.Connect(&recordingSubmitter{}, rpc.TransactionOpts{}))
	_, err = swapped.Execute(context.Background(), dispatch.SingleTransaction{Transaction: tx})
	assert.NoError(t, err)
}
