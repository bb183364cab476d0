package wallet

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionSubmitter is the RPC surface a hot wallet needs to send.
// *rpc.Client satisfies it.
type TransactionSubmitter interface {
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// Keypair is a hot wallet holding its private key in memory. It can sign but
// not send; use Connect to obtain a sending variant.
type Keypair struct {
	key solana.PrivateKey
}

var _ Wallet = (*Keypair)(nil)

// NewKeypair wraps an ed25519 private key.
func NewKeypair(key solana.PrivateKey) *Keypair {
	return &Keypair{key: key}
}

// LoadKeypair reads a key either from a solana-keygen JSON file or from a
// base58 string prefixed with "base58:".
func LoadKeypair(source string) (*Keypair, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("keypair source is empty")
	}
	if encoded, ok := strings.CutPrefix(source, "base58:"); ok {
		key, err := solana.PrivateKeyFromBase58(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode base58 keypair: %w", err)
		}
		return NewKeypair(key), nil
	}
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("keypair file: %w", err)
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(source)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}
	return NewKeypair(key), nil
}

func (k *Keypair) PublicKey() solana.PublicKey { return k.key.PublicKey() }

func (k *Keypair) SignTransaction(_ context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if err := PartialSign(tx, k.key); err != nil {
		return nil, err
	}
	return tx, nil
}

func (k *Keypair) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	out := make([]*solana.Transaction, 0, len(txs))
	for i, tx := range txs {
		signed, err := k.SignTransaction(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		out = append(out, signed)
	}
	return out, nil
}

func (k *Keypair) SignMessage(_ context.Context, message []byte) (solana.Signature, error) {
	return k.key.Sign(message)
}

// Connect returns a wallet that also submits through the given RPC client.
func (k *Keypair) Connect(submitter TransactionSubmitter, opts rpc.TransactionOpts) *ConnectedKeypair {
	return &ConnectedKeypair{Keypair: k, submitter: submitter, opts: opts}
}

// ConnectedKeypair is a Keypair able to submit transactions.
type ConnectedKeypair struct {
	*Keypair
	submitter TransactionSubmitter
	opts      rpc.TransactionOpts
}

var (
	_ SignAndSender = (*ConnectedKeypair)(nil)
	_ Sender        = (*ConnectedKeypair)(nil)
)

func (c *ConnectedKeypair) SignAndSendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	signed, err := c.SignTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.SendTransaction(ctx, signed)
}

func (c *ConnectedKeypair) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if c.submitter == nil {
		return solana.Signature{}, fmt.Errorf("keypair wallet has no rpc submitter")
	}
	return c.submitter.SendTransactionWithOpts(ctx, tx, c.opts)
}
