package errors

import (
	"context"
	stdErrors "errors"
	"net"
	"net/url"
	"strconv"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/dispatch"
	"AgentKit-Chain/pkg/plugin"
	"AgentKit-Chain/pkg/schema"
	"AgentKit-Chain/pkg/wallet"
)

// 工具调用与链上执行相关的错误码。
const (
	CodeRegistrationFailed Code = "REGISTRATION_FAILED"
	CodeDuplicateAction    Code = "DUPLICATE_ACTION"
	CodeInvalidSchema      Code = "INVALID_SCHEMA"
	CodeSchemaValidation   Code = "SCHEMA_VALIDATION"
	CodeUnsupportedType    Code = "UNSUPPORTED_TYPE"
	CodeActionNotFound     Code = "ACTION_NOT_FOUND"
	CodeCapabilityMissing  Code = "CAPABILITY_MISSING"
	CodeNetworkFailure     Code = "NETWORK_FAILURE"
	CodeTransactionFailed  Code = "TRANSACTION_FAILED"
	CodePartialBatch       Code = "PARTIAL_BATCH"
	CodeAttestationTimeout Code = "ATTESTATION_TIMEOUT"
	CodeAttestationFailed  Code = "ATTESTATION_FAILED"
)

func init() {
	// 注册错误在启动阶段暴露，不做自动恢复。
	Register(CodeRegistrationFailed, attrs("plugin registration failed", SeverityCritical, false, true))
	Register(CodeDuplicateAction, attrs("duplicate action name", SeverityCritical, false, true))
	Register(CodeInvalidSchema, attrs("action schema is invalid", SeverityCritical, false, true))
	Register(CodeUnsupportedType, attrs("schema type not supported by tool format", SeverityCritical, false, true))
	// 参数校验失败以结构化结果返回给模型。
	Register(CodeSchemaValidation, attrs("arguments do not match the action schema", SeverityInfo, false, false))
	Register(CodeActionNotFound, attrs("action not found", SeverityInfo, false, false))
	Register(CodeCapabilityMissing, attrs("wallet capability missing", SeverityWarning, false, false))
	// 链上与网络错误不在分发器内部重试，由调用方（任务处理器）决定。
	Register(CodeNetworkFailure, attrs("chain or network request failed", SeverityWarning, true, false))
	Register(CodeTransactionFailed, attrs("transaction failed on chain", SeverityWarning, false, true))
	Register(CodePartialBatch, attrs("batch partially submitted", SeverityCritical, false, true))
	Register(CodeAttestationTimeout, attrs("attestation not available yet", SeverityWarning, true, false))
	Register(CodeAttestationFailed, attrs("attestation failed", SeverityWarning, false, true))
}

// Classify 将各层返回的错误映射为统一错误码。已是 *Error 的错误原样返回，
// 无法识别的错误归为 fallback。
func Classify(err error, fallback Code) *Error {
	if err == nil {
		return nil
	}
	if e, ok := From(err); ok {
		return e
	}
	var (
		partial *dispatch.PartialBatchError
		capErr  *wallet.CapabilityError
		rpcErr  *jsonrpc.RPCError
		urlErr  *url.Error
		netErr  net.Error
	)
	switch {
	case stdErrors.As(err, &partial):
		e := Wrap(CodePartialBatch, err, "")
		for i, sig := range partial.Submitted {
			e.metadata = mergeMeta(e.metadata, "submitted_"+strconv.Itoa(i), sig.String())
		}
		return e
	case stdErrors.As(err, &capErr):
		return Wrap(CodeCapabilityMissing, err, "", WithMetadata("capability", string(capErr.Capability)))
	case stdErrors.Is(err, action.ErrDuplicateAction):
		return Wrap(CodeDuplicateAction, err, "")
	case stdErrors.Is(err, action.ErrNotRecord):
		return Wrap(CodeInvalidSchema, err, "")
	case stdErrors.Is(err, action.ErrInvalidAction), stdErrors.Is(err, plugin.ErrCapabilityDenied):
		return Wrap(CodeRegistrationFailed, err, "")
	case stdErrors.Is(err, dispatch.ErrEmptyRequest), stdErrors.Is(err, dispatch.ErrComputeBudgetConflict):
		return Wrap(CodeInvalidArgument, err, "")
	case stdErrors.Is(err, action.ErrActionNotFound):
		return Wrap(CodeActionNotFound, err, "")
	case stdErrors.Is(err, schema.ErrValidation):
		return Wrap(CodeSchemaValidation, err, "")
	case stdErrors.Is(err, schema.ErrUnsupportedType):
		return Wrap(CodeUnsupportedType, err, "")
	case stdErrors.Is(err, dispatch.ErrTransactionFailed):
		return Wrap(CodeTransactionFailed, err, "")
	case stdErrors.Is(err, dispatch.ErrConfirmationTimeout),
		stdErrors.Is(err, context.DeadlineExceeded),
		stdErrors.Is(err, context.Canceled):
		return Wrap(CodeTimeout, err, "")
	case stdErrors.As(err, &rpcErr), stdErrors.As(err, &urlErr), stdErrors.As(err, &netErr):
		return Wrap(CodeNetworkFailure, err, "")
	default:
		return Wrap(fallback, err, "")
	}
}

// Payload 是返回给模型或 HTTP 调用方的结构化错误。
type Payload struct {
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Code     Code              `json:"code"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PayloadOf 生成 {"status":"error"} 结构。消息保留底层错误原文。
func PayloadOf(err error) Payload {
	e := Classify(err, CodeExecutorFailure)
	if e == nil {
		return Payload{Status: "error", Message: "unknown error", Code: CodeUnknown}
	}
	message := e.Message()
	if e.cause != nil {
		message = e.cause.Error()
	}
	return Payload{Status: "error", Message: message, Code: e.Code(), Metadata: e.Metadata()}
}

func mergeMeta(meta map[string]string, key, value string) map[string]string {
	if meta == nil {
		meta = make(map[string]string)
	}
	meta[key] = value
	return meta
}
