package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"

	"AgentKit-Chain/pkg/logger"
	"AgentKit-Chain/pkg/wallet"
)

// Connection is the chain RPC surface the dispatcher needs. *rpc.Client
// satisfies it.
type Connection interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Observer receives one call per Execute.
type Observer interface {
	ObserveDispatch(kind RequestKind, signOnly bool, err error, elapsed time.Duration)
}

// Options tune a single execution.
type Options struct {
	SignOnly      bool
	Commitment    rpc.CommitmentType
	PollInterval  time.Duration
	MaxPolls      int
	SkipPreflight bool
}

// Option mutates Options.
type Option func(*Options)

func WithSignOnly(signOnly bool) Option {
	return func(o *Options) { o.SignOnly = signOnly }
}

func WithCommitment(commitment rpc.CommitmentType) Option {
	return func(o *Options) {
		if commitment != "" {
			o.Commitment = commitment
		}
	}
}

// WithPolling sets how often and how many times confirmation is polled.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(o *Options) {
		if interval > 0 {
			o.PollInterval = interval
		}
		if attempts > 0 {
			o.MaxPolls = attempts
		}
	}
}

func WithSkipPreflight(skip bool) Option {
	return func(o *Options) { o.SkipPreflight = skip }
}

func defaultOptions() Options {
	return Options{
		Commitment:   rpc.CommitmentConfirmed,
		PollInterval: 500 * time.Millisecond,
		MaxPolls:     60,
	}
}

// Result is the prepared transaction artifact. Exactly one of Signature or
// Transactions is meaningful: a submitted request carries signatures, a
// sign-only request carries the signed, unsent transactions.
type Result struct {
	Signature    solana.Signature
	Signatures   []solana.Signature
	Transactions []*solana.Transaction
}

// Submitted reports whether the request reached the chain.
func (r *Result) Submitted() bool {
	return r != nil && r.Signature != (solana.Signature{})
}

// Artifact renders the result for tool output.
func (r *Result) Artifact() (map[string]any, error) {
	if r.Submitted() {
		sigs := make([]string, 0, len(r.Signatures))
		for _, s := range r.Signatures {
			sigs = append(sigs, s.String())
		}
		return map[string]any{"signature": r.Signature.String(), "signatures": sigs}, nil
	}
	encoded := make([]string, 0, len(r.Transactions))
	for _, tx := range r.Transactions {
		b64, err := wallet.EncodeTransaction(tx)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, b64)
	}
	return map[string]any{"signed_transactions": encoded}, nil
}

// Dispatcher executes requests against a wallet.
type Dispatcher struct {
	conn     Connection
	defaults Options
	observer Observer
	log      *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDefaults sets options applied before per-call options.
func WithDefaults(opts ...Option) DispatcherOption {
	return func(d *Dispatcher) {
		for _, opt := range opts {
			if opt != nil {
				opt(&d.defaults)
			}
		}
	}
}

func WithObserver(observer Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = observer }
}

// New constructs a Dispatcher. conn may be nil when only pre-built
// transactions are dispatched.
func New(conn Connection, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		conn:     conn,
		defaults: defaultOptions(),
		log:      logger.Named("dispatch"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Execute signs, and unless sign-only, submits the request. Missing wallet
// capabilities are reported before any signing happens. RPC errors are
// returned as-is; nothing is retried here.
func (d *Dispatcher) Execute(ctx context.Context, w wallet.Wallet, req Request, opts ...Option) (res *Result, err error) {
	options := d.defaults
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if req == nil {
		return nil, ErrEmptyRequest
	}

	start := time.Now()
	defer func() {
		if d.observer != nil {
			d.observer.ObserveDispatch(req.Kind(), options.SignOnly, err, time.Since(start))
		}
		d.audit(w, req.Kind(), options.SignOnly, res, err)
	}()

	if err := wallet.Require(w); err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case BatchTransactions:
		return d.executeBatch(ctx, w, r, options)
	case *BatchTransactions:
		return d.executeBatch(ctx, w, *r, options)
	case SingleTransaction:
		return d.executeSingle(ctx, w, r, options)
	case *SingleTransaction:
		return d.executeSingle(ctx, w, *r, options)
	case RawInstructions:
		return d.executeInstructions(ctx, w, r, options)
	case *RawInstructions:
		return d.executeInstructions(ctx, w, *r, options)
	default:
		return nil, fmt.Errorf("unsupported dispatch request %T", req)
	}
}

// executeBatch submits every item in order. Sending stops at the first
// failure; signatures already obtained are reported in a PartialBatchError.
func (d *Dispatcher) executeBatch(ctx context.Context, w wallet.Wallet, req BatchTransactions, opts Options) (*Result, error) {
	if len(req.Transactions) == 0 {
		return nil, ErrEmptyRequest
	}
	if opts.SignOnly {
		signed, err := w.SignAllTransactions(ctx, req.Transactions)
		if err != nil {
			return nil, err
		}
		return &Result{Transactions: signed}, nil
	}
	if err := wallet.Require(w, wallet.CapabilitySignAndSend); err != nil {
		return nil, err
	}
	sender := w.(wallet.SignAndSender)
	sigs := make([]solana.Signature, 0, len(req.Transactions))
	for i, tx := range req.Transactions {
		sig, err := sender.SignAndSendTransaction(ctx, tx)
		if err != nil {
			if len(sigs) == 0 {
				return nil, err
			}
			return nil, &PartialBatchError{Submitted: sigs, Index: i, Err: err}
		}
		sigs = append(sigs, sig)
	}
	return &Result{Signature: sigs[0], Signatures: sigs}, nil
}

func (d *Dispatcher) executeSingle(ctx context.Context, w wallet.Wallet, req SingleTransaction, opts Options) (*Result, error) {
	if req.Transaction == nil {
		return nil, ErrEmptyRequest
	}
	if opts.SignOnly {
		signed, err := w.SignTransaction(ctx, req.Transaction)
		if err != nil {
			return nil, err
		}
		return &Result{Transactions: []*solana.Transaction{signed}}, nil
	}
	if err := wallet.Require(w, wallet.CapabilitySignAndSend); err != nil {
		return nil, err
	}
	sig, err := w.(wallet.SignAndSender).SignAndSendTransaction(ctx, req.Transaction)
	if err != nil {
		return nil, err
	}
	return &Result{Signature: sig, Signatures: []solana.Signature{sig}}, nil
}

func (d *Dispatcher) executeInstructions(ctx context.Context, w wallet.Wallet, req RawInstructions, opts Options) (*Result, error) {
	tx, err := d.BuildTransaction(ctx, w.PublicKey(), req, opts.Commitment)
	if err != nil {
		return nil, err
	}
	if len(req.Signers) > 0 {
		if err := wallet.PartialSign(tx, req.Signers...); err != nil {
			return nil, fmt.Errorf("auxiliary signers: %w", err)
		}
	}
	signed, err := w.SignTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	if opts.SignOnly {
		return &Result{Transactions: []*solana.Transaction{signed}}, nil
	}
	sig, err := d.conn.SendTransactionWithOpts(ctx, signed, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.Commitment,
	})
	if err != nil {
		return nil, err
	}
	if err := d.confirm(ctx, sig, opts); err != nil {
		return nil, err
	}
	return &Result{Signature: sig, Signatures: []solana.Signature{sig}}, nil
}

// BuildTransaction prepends the compute budget for the tier, fetches a fresh
// blockhash and assembles an unsigned v0 transaction paid by payer.
func (d *Dispatcher) BuildTransaction(ctx context.Context, payer solana.PublicKey, req RawInstructions, commitment rpc.CommitmentType) (*solana.Transaction, error) {
	if len(req.Instructions) == 0 {
		return nil, ErrEmptyRequest
	}
	if d.conn == nil {
		return nil, ErrNoConnection
	}
	if idx := computeBudgetIndexes(req.Instructions); len(idx) > 0 {
		return nil, fmt.Errorf("%w: instructions at %v target %s", ErrComputeBudgetConflict, idx, computebudget.ProgramID)
	}
	budget, err := req.FeeTier.Budget()
	if err != nil {
		return nil, err
	}
	if commitment == "" {
		commitment = d.defaults.Commitment
	}
	latest, err := d.conn.GetLatestBlockhash(ctx, commitment)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Value == nil {
		return nil, fmt.Errorf("latest blockhash response is empty")
	}

	instructions := append(budget.Instructions(), req.Instructions...)
	tx, err := solana.NewTransaction(instructions, latest.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("assemble transaction: %w", err)
	}
	tx.Message.SetVersion(solana.MessageVersionV0)
	return tx, nil
}

func computeBudgetIndexes(instructions []solana.Instruction) []int {
	var idx []int
	for i, ix := range instructions {
		if ix != nil && ix.ProgramID().Equals(computebudget.ProgramID) {
			idx = append(idx, i)
		}
	}
	return idx
}

func (d *Dispatcher) audit(w wallet.Wallet, kind RequestKind, signOnly bool, res *Result, err error) {
	attrs := []any{
		slog.String("kind", string(kind)),
		slog.Bool("sign_only", signOnly),
	}
	if w != nil {
		attrs = append(attrs, slog.String("wallet", w.PublicKey().String()))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		logger.Audit().Warn("dispatch failed", attrs...)
		return
	}
	if res.Submitted() {
		attrs = append(attrs, slog.String("signature", res.Signature.String()), slog.Int("submitted", len(res.Signatures)))
	} else {
		attrs = append(attrs, slog.Int("signed", len(res.Transactions)))
	}
	logger.Audit().Info("dispatch completed", attrs...)
}
