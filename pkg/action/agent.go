package action

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"AgentKit-Chain/pkg/dispatch"
	"AgentKit-Chain/pkg/wallet"
)

// Connection is the chain RPC surface handlers use. *rpc.Client satisfies it.
type Connection interface {
	dispatch.Connection
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetTokenSupply(ctx context.Context, mint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error)
}

// Config is the per-agent configuration visible to handlers.
type Config struct {
	SignOnly bool
	FeeTier  dispatch.FeeTier
	APIKeys  map[string]string
}

// APIKey returns the named key or "".
func (c Config) APIKey(name string) string {
	return c.APIKeys[name]
}

// Agent is what a handler sees of the agent it runs in. The wallet and
// sign-only flag are fixed for the duration of one call.
type Agent interface {
	Wallet() wallet.Wallet
	Connection() Connection
	Config() Config
	// Execute dispatches a transaction-shaped request with the agent's wallet,
	// sign-only flag and fee tier.
	Execute(ctx context.Context, req dispatch.Request, opts ...dispatch.Option) (*dispatch.Result, error)
}
