package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgentKit-Chain/pkg/wallet"
)

type fakeConn struct {
	blockhash solana.Hash
	sent      []*solana.Transaction
	sendErr   error
	statuses  []*rpc.SignatureStatusesResult
	polls     int
}

func (f *fakeConn) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: f.blockhash}}, nil
}

func (f *fakeConn) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeConn) GetSignatureStatuses(context.Context, bool, ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	idx := f.polls
	f.polls++
	if idx >= len(f.statuses) {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{f.statuses[idx]}}, nil
}

// failingSender sends the first n transactions and fails afterwards.
type failingSender struct {
	*wallet.Keypair
	okCount int
	calls   int
}

func (f *failingSender) SignAndSendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.calls++
	if f.calls > f.okCount {
		return solana.Signature{}, errors.New("rpc unavailable")
	}
	signed, err := f.SignTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	return signed.Signatures[0], nil
}

type recordingObserver struct {
	kinds []RequestKind
	errs  []error
}

func (r *recordingObserver) ObserveDispatch(kind RequestKind, _ bool, err error, _ time.Duration) {
	r.kinds = append(r.kinds, kind)
	r.errs = append(r.errs, err)
}

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func transferIx(from, to solana.PublicKey) solana.Instruction {
	return system.NewTransferInstruction(1_000, from, to).Build()
}

func builtTx(t *testing.T, payer solana.PublicKey) *solana.Transaction {
	t.Helper()
	tx, err := solana.NewTransaction([]solana.Instruction{transferIx(payer, newKey(t).PublicKey())}, solana.Hash{1}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	return tx
}

func confirmed() *rpc.SignatureStatusesResult {
	return &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}
}

func TestRawInstructionsPrependComputeBudget(t *testing.T) {
	conn := &fakeConn{blockhash: solana.Hash{9}, statuses: []*rpc.SignatureStatusesResult{confirmed()}}
	kp := wallet.NewKeypair(newKey(t))
	d := New(conn, WithDefaults(WithPolling(time.Millisecond, 3)))

	res, err := d.Execute(context.Background(), kp, RawInstructions{
		Instructions: []solana.Instruction{transferIx(kp.PublicKey(), newKey(t).PublicKey())},
		FeeTier:      FeeHigh,
	})
	require.NoError(t, err)
	require.True(t, res.Submitted())
	require.Len(t, conn.sent, 1)

	tx := conn.sent[0]
	assert.Equal(t, solana.Hash{9}, tx.Message.RecentBlockhash)
	assert.Equal(t, kp.PublicKey(), tx.Message.AccountKeys[0])
	require.Len(t, tx.Message.Instructions, 3)

	programOf := func(i int) solana.PublicKey {
		return tx.Message.AccountKeys[tx.Message.Instructions[i].ProgramIDIndex]
	}
	assert.True(t, programOf(0).Equals(computebudget.ProgramID))
	assert.True(t, programOf(1).Equals(computebudget.ProgramID))
	assert.True(t, programOf(2).Equals(solana.SystemProgramID))
	assert.Equal(t, byte(2), tx.Message.Instructions[0].Data[0], "unit limit first")
	assert.Equal(t, byte(3), tx.Message.Instructions[1].Data[0], "unit price second")
	assert.NoError(t, tx.VerifySignatures())
}

func TestRawInstructionsRejectCallerComputeBudget(t *testing.T) {
	conn := &fakeConn{blockhash: solana.Hash{4}}
	kp := wallet.NewKeypair(newKey(t))

	_, err := New(conn).Execute(context.Background(), kp, RawInstructions{
		Instructions: []solana.Instruction{
			transferIx(kp.PublicKey(), newKey(t).PublicKey()),
			computebudget.NewSetComputeUnitPriceInstruction(5_000).Build(),
			computebudget.NewSetComputeUnitLimitInstruction(400_000).Build(),
		},
		FeeTier: FeeLow,
	})
	require.ErrorIs(t, err, ErrComputeBudgetConflict)
	assert.Contains(t, err.Error(), "[1 2]")
	assert.Empty(t, conn.sent)
}

func TestRawInstructionsSignOnlyDoesNotSend(t *testing.T) {
	conn := &fakeConn{blockhash: solana.Hash{3}}
	kp := wallet.NewKeypair(newKey(t))
	d := New(conn)

	res, err := d.Execute(context.Background(), kp, RawInstructions{
		Instructions: []solana.Instruction{transferIx(kp.PublicKey(), newKey(t).PublicKey())},
	}, WithSignOnly(true))
	require.NoError(t, err)
	assert.False(t, res.Submitted())
	require.Len(t, res.Transactions, 1)
	assert.Empty(t, conn.sent)
	assert.Zero(t, conn.polls)

	artifact, err := res.Artifact()
	require.NoError(t, err)
	assert.Len(t, artifact["signed_transactions"], 1)
}

func TestRawInstructionsWithAuxiliarySigner(t *testing.T) {
	conn := &fakeConn{blockhash: solana.Hash{5}}
	kp := wallet.NewKeypair(newKey(t))
	account := newKey(t)
	ix := system.NewCreateAccountInstruction(1_000_000, 0, solana.SystemProgramID, kp.PublicKey(), account.PublicKey()).Build()

	res, err := New(conn).Execute(context.Background(), kp, RawInstructions{
		Instructions: []solana.Instruction{ix},
		Signers:      []solana.PrivateKey{account},
		FeeTier:      FeeLow,
	}, WithSignOnly(true))
	require.NoError(t, err)
	assert.True(t, wallet.FullySigned(res.Transactions[0]))
}

func TestRawInstructionsWithoutConnection(t *testing.T) {
	kp := wallet.NewKeypair(newKey(t))
	_, err := New(nil).Execute(context.Background(), kp, RawInstructions{
		Instructions: []solana.Instruction{transferIx(kp.PublicKey(), newKey(t).PublicKey())},
	})
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestSingleRequiresSignAndSendBeforeSigning(t *testing.T) {
	kp := wallet.NewKeypair(newKey(t))
	tx := builtTx(t, kp.PublicKey())

	_, err := New(nil).Execute(context.Background(), kp, SingleTransaction{Transaction: tx})
	require.Error(t, err)
	assert.ErrorIs(t, err, wallet.ErrCapabilityMissing)
	assert.Empty(t, tx.Signatures, "nothing signed before the capability check")
}

func TestSingleSignOnlyReturnsSignedTransaction(t *testing.T) {
	kp := wallet.NewKeypair(newKey(t))
	tx := builtTx(t, kp.PublicKey())

	res, err := New(nil).Execute(context.Background(), kp, SingleTransaction{Transaction: tx}, WithSignOnly(true))
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.NoError(t, res.Transactions[0].VerifySignatures())
}

func TestSingleSendsThroughWallet(t *testing.T) {
	submitter := &fakeConn{}
	w := wallet.NewKeypair(newKey(t)).Connect(submitter, rpc.TransactionOpts{})
	tx := builtTx(t, w.PublicKey())

	res, err := New(nil).Execute(context.Background(), w, SingleTransaction{Transaction: tx})
	require.NoError(t, err)
	assert.True(t, res.Submitted())
	assert.Len(t, submitter.sent, 1)
}

func TestBatchStopsAtFirstFailure(t *testing.T) {
	kp := wallet.NewKeypair(newKey(t))
	w := &failingSender{Keypair: kp, okCount: 2}
	txs := []*solana.Transaction{builtTx(t, kp.PublicKey()), builtTx(t, kp.PublicKey()), builtTx(t, kp.PublicKey()), builtTx(t, kp.PublicKey())}
	observer := &recordingObserver{}

	_, err := New(nil, WithObserver(observer)).Execute(context.Background(), w, BatchTransactions{Transactions: txs})
	var partial *PartialBatchError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 2, partial.Index)
	assert.Len(t, partial.Submitted, 2)
	assert.Equal(t, 3, w.calls)
	assert.Equal(t, []RequestKind{KindBatch}, observer.kinds)
}

func TestBatchReturnsFirstSignature(t *testing.T) {
	kp := wallet.NewKeypair(newKey(t))
	w := &failingSender{Keypair: kp, okCount: 10}
	txs := []*solana.Transaction{builtTx(t, kp.PublicKey()), builtTx(t, kp.PublicKey())}

	res, err := New(nil).Execute(context.Background(), w, BatchTransactions{Transactions: txs})
	require.NoError(t, err)
	assert.Equal(t, res.Signatures[0], res.Signature)
	assert.Len(t, res.Signatures, 2)
}

func TestBatchSignOnlyUsesSignAll(t *testing.T) {
	kp := wallet.NewKeypair(newKey(t))
	txs := []*solana.Transaction{builtTx(t, kp.PublicKey()), builtTx(t, kp.PublicKey())}

	res, err := New(nil).Execute(context.Background(), kp, BatchTransactions{Transactions: txs}, WithSignOnly(true))
	require.NoError(t, err)
	assert.Len(t, res.Transactions, 2)
}

func TestEmptyRequests(t *testing.T) {
	kp := wallet.NewKeypair(newKey(t))
	d := New(&fakeConn{})
	_, err := d.Execute(context.Background(), kp, BatchTransactions{})
	assert.ErrorIs(t, err, ErrEmptyRequest)
	_, err = d.Execute(context.Background(), kp, SingleTransaction{})
	assert.ErrorIs(t, err, ErrEmptyRequest)
	_, err = d.Execute(context.Background(), kp, RawInstructions{})
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

func TestConfirmationFailureAndTimeout(t *testing.T) {
	kp := wallet.NewKeypair(newKey(t))
	req := RawInstructions{Instructions: []solana.Instruction{transferIx(kp.PublicKey(), newKey(t).PublicKey())}}

	failing := &fakeConn{statuses: []*rpc.SignatureStatusesResult{{Err: map[string]any{"InstructionError": []any{0, "Custom"}}}}}
	_, err := New(failing, WithDefaults(WithPolling(time.Millisecond, 2))).Execute(context.Background(), kp, req)
	assert.ErrorIs(t, err, ErrTransactionFailed)

	slow := &fakeConn{}
	_, err = New(slow, WithDefaults(WithPolling(time.Millisecond, 2))).Execute(context.Background(), kp, req)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Equal(t, 2, slow.polls)
}

func TestSendErrorPassesThrough(t *testing.T) {
	rpcErr := errors.New("blockhash not found")
	conn := &fakeConn{sendErr: rpcErr}
	kp := wallet.NewKeypair(newKey(t))

	_, err := New(conn).Execute(context.Background(), kp, RawInstructions{
		Instructions: []solana.Instruction{transferIx(kp.PublicKey(), newKey(t).PublicKey())},
	})
	assert.Same(t, rpcErr, err)
}

func TestParseFeeTier(t *testing.T) {
	tier, err := ParseFeeTier("Medium")
	require.NoError(t, err)
	assert.Equal(t, FeeMid, tier)

	_, err = ParseFeeTier("ludicrous")
	assert.Error(t, err)

	budget, err := FeeTier("").Budget()
	require.NoError(t, err)
	assert.Equal(t, uint32(400_000), budget.UnitLimit)
}
