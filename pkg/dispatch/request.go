// Package dispatch decides how a transaction-shaped request is signed and
// submitted. Callers hand over whatever granularity they have (a batch of
// built transactions, one built transaction, or raw instructions) and receive
// either a signature or the signed, unsent transactions.
package dispatch

import (
	"github.com/gagliardetto/solana-go"
)

// RequestKind labels the request variant for logs and metrics.
type RequestKind string

const (
	KindBatch        RequestKind = "batch"
	KindSingle       RequestKind = "single"
	KindInstructions RequestKind = "instructions"
)

// Request is a closed union of BatchTransactions, SingleTransaction and
// RawInstructions.
type Request interface {
	Kind() RequestKind
	sealed()
}

// BatchTransactions carries several already built transactions.
type BatchTransactions struct {
	Transactions []*solana.Transaction
}

// SingleTransaction carries one already built transaction.
type SingleTransaction struct {
	Transaction *solana.Transaction
}

// RawInstructions is assembled into a single versioned transaction. Signers
// are auxiliary keys co-signing before the wallet (e.g. a new account).
type RawInstructions struct {
	Instructions []solana.Instruction
	Signers      []solana.PrivateKey
	FeeTier      FeeTier
}

func (BatchTransactions) Kind() RequestKind { return KindBatch }
func (SingleTransaction) Kind() RequestKind { return KindSingle }
func (RawInstructions) Kind() RequestKind   { return KindInstructions }

func (BatchTransactions) sealed() {}
func (SingleTransaction) sealed() {}
func (RawInstructions) sealed()   {}
