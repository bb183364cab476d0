package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/dispatch"
	"AgentKit-Chain/pkg/schema"
	"AgentKit-Chain/pkg/wallet"
)

func TestAttributesDefaults(t *testing.T) {
	e := New(CodeNetworkFailure, "")
	assert.Equal(t, "chain or network request failed", e.Message())
	assert.True(t, e.Retryable())
	assert.False(t, e.ShouldAlert())

	overridden := New(CodeNetworkFailure, "rpc down", WithRetryable(false), WithSeverity(SeverityCritical))
	assert.False(t, overridden.Retryable())
	assert.Equal(t, SeverityCritical, overridden.Severity())

	assert.Equal(t, AttributesOf(CodeUnknown), AttributesOf(Code("NOPE")))
}

func TestIsComparesCodes(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeAttestationTimeout, "pending"))
	assert.True(t, stdErrors.Is(err, New(CodeAttestationTimeout, "")))
	assert.False(t, stdErrors.Is(err, New(CodeAttestationFailed, "")))
	assert.Equal(t, CodeAttestationTimeout, CodeOf(err))
	assert.True(t, RetryableError(err))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{fmt.Errorf("%w: transfer", action.ErrDuplicateAction), CodeDuplicateAction},
		{fmt.Errorf("%w: x", action.ErrNotRecord), CodeInvalidSchema},
		{fmt.Errorf("%w: y", action.ErrActionNotFound), CodeActionNotFound},
		{&schema.ValidationError{Issues: []string{"amount is required"}}, CodeSchemaValidation},
		{fmt.Errorf("wrap: %w", schema.ErrUnsupportedType), CodeUnsupportedType},
		{&wallet.CapabilityError{Capability: wallet.CapabilitySignAndSend}, CodeCapabilityMissing},
		{fmt.Errorf("confirm: %w", dispatch.ErrConfirmationTimeout), CodeTimeout},
		{context.DeadlineExceeded, CodeTimeout},
		{fmt.Errorf("%w: instructions at [0]", dispatch.ErrComputeBudgetConflict), CodeInvalidArgument},
		{stdErrors.New("boom"), CodeExecutorFailure},
		{New(CodeStorageFailure, "db"), CodeStorageFailure},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err, CodeExecutorFailure).Code(), "%v", tc.err)
	}
	assert.Nil(t, Classify(nil, CodeUnknown))
}

func TestPayloadOf(t *testing.T) {
	p := PayloadOf(&wallet.CapabilityError{Capability: wallet.CapabilitySignAndSend})
	assert.Equal(t, "error", p.Status)
	assert.Equal(t, CodeCapabilityMissing, p.Code)
	assert.Contains(t, p.Message, "signAndSendTransaction")
	assert.Equal(t, "signAndSendTransaction", p.Metadata["capability"])

	partial := &dispatch.PartialBatchError{Submitted: []solana.Signature{{1}}, Index: 1, Err: stdErrors.New("rpc")}
	p = PayloadOf(partial)
	require.Equal(t, CodePartialBatch, p.Code)
	assert.Equal(t, solana.Signature{1}.String(), p.Metadata["submitted_0"])
}
