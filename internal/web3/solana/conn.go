// Package solana builds the Solana RPC connection used by the agent and its
// plugins.
package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"

	"AgentKit-Chain/pkg/action"
)

// Endpoint maps a cluster moniker to its public RPC URL. Anything else is
// returned unchanged.
func Endpoint(nameOrURL string) string {
	switch strings.ToLower(strings.TrimSpace(nameOrURL)) {
	case "mainnet", "mainnet-beta":
		return rpc.MainNetBeta_RPC
	case "devnet":
		return rpc.DevNet_RPC
	case "testnet":
		return rpc.TestNet_RPC
	case "localnet", "localhost":
		return rpc.LocalNet_RPC
	default:
		return strings.TrimSpace(nameOrURL)
	}
}

// ParseCommitment accepts processed, confirmed and finalized. Empty input
// means confirmed.
func ParseCommitment(raw string) (rpc.CommitmentType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return rpc.CommitmentConfirmed, nil
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "confirmed":
		return rpc.CommitmentConfirmed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("unknown commitment %q", raw)
	}
}

// Conn is a named RPC client. It satisfies action.Connection through the
// embedded *rpc.Client.
type Conn struct {
	*rpc.Client
	name       string
	endpoint   string
	commitment rpc.CommitmentType
}

var _ action.Connection = (*Conn)(nil)

// Dial creates a connection. No request is made until the first call.
func Dial(name, endpoint, commitment string) (*Conn, error) {
	url := Endpoint(endpoint)
	if url == "" {
		return nil, errors.New("solana rpc endpoint is empty")
	}
	level, err := ParseCommitment(commitment)
	if err != nil {
		return nil, err
	}
	return &Conn{Client: rpc.New(url), name: name, endpoint: url, commitment: level}, nil
}

func (c *Conn) Name() string                   { return c.name }
func (c *Conn) URL() string                    { return c.endpoint }
func (c *Conn) Commitment() rpc.CommitmentType { return c.commitment }

// Healthy asks the node for its health status.
func (c *Conn) Healthy(ctx context.Context) error {
	status, err := c.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("solana %s health: %w", c.name, err)
	}
	if status != rpc.HealthOk {
		return fmt.Errorf("solana %s reports %s", c.name, status)
	}
	return nil
}
