// Package plugintest provides an in-memory chain connection and agent
// construction helpers for plugin tests.
package plugintest

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/dispatch"
	"AgentKit-Chain/pkg/wallet"
)

// ErrAccountNotFound mimics the RPC error for a missing account.
var ErrAccountNotFound = errors.New("could not find account")

// Conn is an in-memory action.Connection. Every submitted transaction is
// confirmed immediately.
type Conn struct {
	mu            sync.Mutex
	Blockhash     solana.Hash
	Balances      map[solana.PublicKey]uint64
	TokenBalances map[solana.PublicKey]rpc.UiTokenAmount
	Supplies      map[solana.PublicKey]rpc.UiTokenAmount
	Rent          uint64
	Sent          []*solana.Transaction
	Airdrops      map[solana.PublicKey]uint64
}

var _ action.Connection = (*Conn)(nil)

// NewConn returns an empty connection.
func NewConn() *Conn {
	return &Conn{
		Blockhash:     solana.Hash{9, 9, 9},
		Balances:      map[solana.PublicKey]uint64{},
		TokenBalances: map[solana.PublicKey]rpc.UiTokenAmount{},
		Supplies:      map[solana.PublicKey]rpc.UiTokenAmount{},
		Rent:          2_039_280,
		Airdrops:      map[solana.PublicKey]uint64{},
	}
}

func (c *Conn) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: c.Blockhash, LastValidBlockHeight: 100}}, nil
}

func (c *Conn) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, tx)
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction is not signed")
	}
	return tx.Signatures[0], nil
}

func (c *Conn) GetSignatureStatuses(_ context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	out := &rpc.GetSignatureStatusesResult{}
	for range sigs {
		out.Value = append(out.Value, &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized})
	}
	return out, nil
}

func (c *Conn) GetBalance(_ context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &rpc.GetBalanceResult{Value: c.Balances[account]}, nil
}

func (c *Conn) GetTokenAccountBalance(_ context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	amount, ok := c.TokenBalances[account]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &rpc.GetTokenAccountBalanceResult{Value: &amount}, nil
}

func (c *Conn) GetTokenSupply(_ context.Context, mint solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	supply, ok := c.Supplies[mint]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &rpc.GetTokenSupplyResult{Value: &supply}, nil
}

func (c *Conn) GetMinimumBalanceForRentExemption(context.Context, uint64, rpc.CommitmentType) (uint64, error) {
	return c.Rent, nil
}

func (c *Conn) RequestAirdrop(_ context.Context, account solana.PublicKey, lamports uint64, _ rpc.CommitmentType) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Airdrops[account] += lamports
	return solana.Signature{7}, nil
}

// SentCount returns how many transactions were submitted.
func (c *Conn) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// Address is the public key of Key. Action examples use it as the agent's
// wallet address.
const Address = "9C6hybhQ6Aycep9jaUnP6uL9ZYvDjUp1aSkFWPUFJtpj"

// Key returns the deterministic test wallet key, derived from the seed
// 0x01..0x20.
func Key() solana.PrivateKey {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed))
}

// NewAgent builds an agent whose keypair wallet submits through conn. The
// wallet always uses Key so example outputs stay reproducible.
func NewAgent(t testing.TB, conn *Conn, signOnly bool) *agent.Agent {
	t.Helper()
	w := wallet.NewKeypair(Key()).Connect(conn, rpc.TransactionOpts{})
	var c action.Connection
	if conn != nil {
		c = conn
	}
	return agent.New(agent.Config{SignOnly: signOnly, APIKeys: map[string]string{}}, w, c,
		agent.WithPolling(dispatch.WithPolling(1, 3)))
}
