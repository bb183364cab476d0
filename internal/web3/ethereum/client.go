package ethereum

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"AgentKit-Chain/internal/web3"
)

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name        string
	RPCURL      string
	BatchRPCURL string
	Notes       string
}

// backend is the read/write subset shared by ethclient and the simulated
// backend.
type backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*coretypes.Header, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
}

// Client implements web3.EVMClient for EVM compatible chains.
type Client struct {
	name        string
	notes       string
	rpcClient   *gethrpc.Client
	batchClient *gethrpc.Client
	eth         *ethclient.Client
	sim         *backends.SimulatedBackend
	chainID     *big.Int
	mu          sync.Mutex
}

var _ web3.EVMClient = (*Client)(nil)

// NewClient dials the configured RPC endpoints and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置 EVM RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接 EVM 节点失败: %w", err)
	}

	batchClient := rpcClient
	if batchURL := strings.TrimSpace(cfg.BatchRPCURL); batchURL != "" && batchURL != rpcURL {
		batchClient, err = gethrpc.DialContext(ctx, batchURL)
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("连接批量交易节点失败: %w", err)
		}
	}

	return &Client{
		name:        cfg.Name,
		notes:       cfg.Notes,
		rpcClient:   rpcClient,
		batchClient: batchClient,
		eth:         ethclient.NewClient(rpcClient),
	}, nil
}

// NewSimulatedClient wraps a go-ethereum simulated backend for tests.
func NewSimulatedClient(name string, chainID *big.Int, sim *backends.SimulatedBackend) *Client {
	return &Client{
		name:    name,
		sim:     sim,
		chainID: new(big.Int).Set(chainID),
		notes:   "simulated backend",
	}
}

// Name returns the chain name from the definition file.
func (c *Client) Name() string { return c.name }

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	if c.batchClient != nil && c.batchClient != c.rpcClient {
		c.batchClient.Close()
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
	c.rpcClient = nil
	c.batchClient = nil
}

func (c *Client) backend() (backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim != nil {
		return c.sim, nil
	}
	if c.eth != nil {
		return c.eth, nil
	}
	return nil, errors.New("EVM 客户端已关闭")
}

// FetchChainSnapshot gathers lightweight metadata from the chain.
func (c *Client) FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	b, err := c.backend()
	if err != nil {
		return web3.ChainSnapshot{}, err
	}

	chainID := c.chainID
	if chainID == nil {
		if c.eth == nil {
			return web3.ChainSnapshot{}, errors.New("未配置链 ID")
		}
		chainID, err = c.eth.ChainID(ctx)
		if err != nil {
			return web3.ChainSnapshot{}, fmt.Errorf("获取链 ID 失败: %w", err)
		}
	}
	head, err := b.HeaderByNumber(ctx, nil)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取最新区块失败: %w", err)
	}
	return web3.ChainSnapshot{
		Name:        c.name,
		ChainID:     toHexBig(chainID),
		BlockNumber: toHexBig(head.Number),
		Notes:       c.notes,
	}, nil
}

// Balance returns the latest balance of address in wei.
func (c *Client) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	b, err := c.backend()
	if err != nil {
		return nil, err
	}
	balance, err := b.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}
	return balance, nil
}

// Nonce returns the pending transaction count of address.
func (c *Client) Nonce(ctx context.Context, address common.Address) (uint64, error) {
	b, err := c.backend()
	if err != nil {
		return 0, err
	}
	nonce, err := b.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("查询交易计数失败: %w", err)
	}
	return nonce, nil
}

// SendBatchTransactions broadcasts signed transactions in a single RPC batch
// call. The simulated backend sends them one by one and mines each.
func (c *Client) SendBatchTransactions(ctx context.Context, txs []*coretypes.Transaction) ([]common.Hash, error) {
	if len(txs) == 0 {
		return nil, errors.New("没有可发送的交易")
	}

	if c.sim != nil {
		hashes := make([]common.Hash, 0, len(txs))
		for _, tx := range txs {
			if err := c.sim.SendTransaction(ctx, tx); err != nil {
				return hashes, fmt.Errorf("发送交易失败: %w", err)
			}
			c.sim.Commit()
			hashes = append(hashes, tx.Hash())
		}
		return hashes, nil
	}

	c.mu.Lock()
	batch := c.batchClient
	c.mu.Unlock()
	if batch == nil {
		return nil, errors.New("当前客户端未配置批量 RPC")
	}

	hashes := make([]common.Hash, len(txs))
	elems := make([]gethrpc.BatchElem, len(txs))
	for i, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("序列化交易失败: %w", err)
		}
		elems[i] = gethrpc.BatchElem{
			Method: "eth_sendRawTransaction",
			Args:   []any{"0x" + hex.EncodeToString(raw)},
			Result: &hashes[i],
		}
	}

	if err := batch.BatchCallContext(ctx, elems); err != nil {
		return nil, fmt.Errorf("批量发送交易失败: %w", err)
	}
	for i := range elems {
		if elems[i].Error != nil {
			return hashes[:i], fmt.Errorf("交易 %d 发送失败: %w", i, elems[i].Error)
		}
	}
	return hashes, nil
}

// DecodeRawTransaction parses a 0x-prefixed RLP or typed transaction.
func DecodeRawTransaction(raw string) (*coretypes.Transaction, error) {
	payload, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, fmt.Errorf("交易不是合法的十六进制: %w", err)
	}
	tx := new(coretypes.Transaction)
	if err := tx.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("解析交易失败: %w", err)
	}
	return tx, nil
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}
