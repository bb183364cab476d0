package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrEmptyRequest        = errors.New("dispatch request carries no transactions or instructions")
	ErrNoConnection        = errors.New("dispatcher has no chain connection")
	ErrConfirmationTimeout = errors.New("transaction not confirmed in time")
	ErrTransactionFailed   = errors.New("transaction failed on chain")
	// ErrComputeBudgetConflict rejects raw instructions that already carry
	// compute-budget instructions; the fee tier owns those.
	ErrComputeBudgetConflict = errors.New("raw instructions must not set the compute budget")
)

// PartialBatchError reports a batch that stopped after some items were
// already submitted.
type PartialBatchError struct {
	Submitted []solana.Signature
	Index     int
	Err       error
}

func (e *PartialBatchError) Error() string {
	sigs := make([]string, 0, len(e.Submitted))
	for _, s := range e.Submitted {
		sigs = append(sigs, s.String())
	}
	return fmt.Sprintf("batch item %d failed after %d submitted [%s]: %v",
		e.Index, len(e.Submitted), strings.Join(sigs, ","), e.Err)
}

func (e *PartialBatchError) Unwrap() error { return e.Err }

// ConfirmationError carries the signature a confirmation problem refers to.
type ConfirmationError struct {
	Signature solana.Signature
	Reason    any
	cause     error
}

func (e *ConfirmationError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("%v: %s: %v", e.cause, e.Signature, e.Reason)
	}
	return fmt.Sprintf("%v: %s", e.cause, e.Signature)
}

func (e *ConfirmationError) Unwrap() error { return e.cause }
