// Package wallet defines the signing contract every custody backend must
// satisfy and the optional capabilities a backend may additionally expose.
//
// Required methods live on Wallet. Sending is optional and advertised by
// implementing SignAndSender or Sender; callers negotiate capabilities with
// Require before they start signing.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Wallet is the minimal custody contract.
type Wallet interface {
	PublicKey() solana.PublicKey
	// SignTransaction adds the wallet signature. Implementations may sign in
	// place and return the same pointer.
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
	SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error)
	SignMessage(ctx context.Context, message []byte) (solana.Signature, error)
}

// SignAndSender is implemented by wallets able to sign and submit in one step.
type SignAndSender interface {
	SignAndSendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Sender is implemented by wallets that can submit an already signed transaction.
type Sender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Capability names a wallet method.
type Capability string

const (
	CapabilitySignTransaction     Capability = "signTransaction"
	CapabilitySignAllTransactions Capability = "signAllTransactions"
	CapabilitySignMessage         Capability = "signMessage"
	CapabilitySignAndSend         Capability = "signAndSendTransaction"
	CapabilitySend                Capability = "sendTransaction"
)

// ErrCapabilityMissing is wrapped by every CapabilityError.
var ErrCapabilityMissing = errors.New("wallet capability missing")

// CapabilityError names the capability a wallet lacks.
type CapabilityError struct {
	Capability Capability
	Wallet     string
}

func (e *CapabilityError) Error() string {
	if e.Wallet == "" {
		return fmt.Sprintf("wallet does not support %s", e.Capability)
	}
	return fmt.Sprintf("wallet %s does not support %s", e.Wallet, e.Capability)
}

func (e *CapabilityError) Unwrap() error { return ErrCapabilityMissing }

// Capabilities lists what the wallet can do.
func Capabilities(w Wallet) []Capability {
	if w == nil {
		return nil
	}
	caps := []Capability{CapabilitySignTransaction, CapabilitySignAllTransactions, CapabilitySignMessage}
	if _, ok := w.(SignAndSender); ok {
		caps = append(caps, CapabilitySignAndSend)
	}
	if _, ok := w.(Sender); ok {
		caps = append(caps, CapabilitySend)
	}
	return caps
}

// Has reports whether the wallet exposes the capability.
func Has(w Wallet, capability Capability) bool {
	for _, c := range Capabilities(w) {
		if c == capability {
			return true
		}
	}
	return false
}

// Require returns a CapabilityError for the first capability the wallet lacks.
func Require(w Wallet, caps ...Capability) error {
	if w == nil {
		return &CapabilityError{Capability: CapabilitySignTransaction}
	}
	for _, c := range caps {
		if !Has(w, c) {
			return &CapabilityError{Capability: c, Wallet: w.PublicKey().String()}
		}
	}
	return nil
}
