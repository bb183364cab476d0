package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainSnapshot represents summarized network metadata.
type ChainSnapshot struct {
	Name        string `json:"name"`
	ChainID     string `json:"chain_id"`
	BlockNumber string `json:"block_number"`
	Notes       string `json:"notes,omitempty"`
}

// EVMClient is the surface the EVM plugin needs from an EVM-compatible chain.
type EVMClient interface {
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	Balance(ctx context.Context, address common.Address) (*big.Int, error)
	Nonce(ctx context.Context, address common.Address) (uint64, error)
	SendBatchTransactions(ctx context.Context, txs []*types.Transaction) ([]common.Hash, error)
	Close()
}
