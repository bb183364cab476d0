package dispatch

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// confirm polls the signature status until the requested commitment is
// reached, the transaction reports an error, polling runs out or ctx ends.
func (d *Dispatcher) confirm(ctx context.Context, sig solana.Signature, opts Options) error {
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < opts.MaxPolls; attempt++ {
		out, err := d.conn.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return err
		}
		if out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return &ConfirmationError{Signature: sig, Reason: status.Err, cause: ErrTransactionFailed}
			}
			if reached(status.ConfirmationStatus, opts.Commitment) {
				return nil
			}
		}
		d.log.Debug("waiting for confirmation", "signature", sig.String(), "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return &ConfirmationError{Signature: sig, cause: ErrConfirmationTimeout}
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	return rank(string(status)) >= rank(string(want))
}

func rank(level string) int {
	switch level {
	case string(rpc.CommitmentProcessed):
		return 1
	case string(rpc.CommitmentConfirmed):
		return 2
	case string(rpc.CommitmentFinalized):
		return 3
	default:
		return 0
	}
}
