package task

import (
	"encoding/json"
	stdErrors "errors"

	xerrors "AgentKit-Chain/internal/errors"
)

// Status 表示任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Request 描述一次异步 Action 调用请求。ID 非空时用于幂等提交。
type Request struct {
	ID         string          `json:"id,omitempty"`
	Action     string          `json:"action"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	MaxRetries int             `json:"max_retries,omitempty"`
}

// Task 描述了排队执行的 Action 调用。
type Task struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	Arguments  json.RawMessage `json:"arguments"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Status     Status          `json:"status"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	// Terminal 为 true 时任务不会再被领取，即使仍有剩余重试次数。
	Terminal  bool            `json:"terminal,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

// Done 判断任务是否已到达终态。
func (t *Task) Done() bool {
	if t == nil {
		return false
	}
	switch t.Status {
	case StatusSucceeded:
		return true
	case StatusFailed:
		return t.Terminal || t.Attempts >= t.MaxRetries
	default:
		return false
	}
}

var (
	// ErrTaskNotFound 表示指定的任务不存在。
	ErrTaskNotFound = xerrors.New(CodeTaskNotFound, "task not found")
	// ErrTaskConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrTaskConflict = xerrors.New(CodeTaskConflict, "task conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrTaskCompleted 表示任务已经成功完成。
	ErrTaskCompleted = xerrors.New(CodeTaskCompleted, "task already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrTaskExhausted 表示任务的重试次数已经耗尽或已被标记为终止。
	ErrTaskExhausted = xerrors.New(CodeTaskExhausted, "task retries exhausted", xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeTaskNotFound   xerrors.Code = "TASK_NOT_FOUND"
	CodeTaskConflict   xerrors.Code = "TASK_CONFLICT"
	CodeTaskCompleted  xerrors.Code = "TASK_COMPLETED"
	CodeTaskExhausted  xerrors.Code = "TASK_RETRIES_EXHAUSTED"
	CodeTaskValidation xerrors.Code = "TASK_VALIDATION_FAILED"
	CodeTaskPublish    xerrors.Code = "TASK_PUBLISH_FAILED"
	CodeTaskResult     xerrors.Code = "TASK_RESULT_INVALID"
)

func init() {
	xerrors.Register(CodeTaskNotFound, xerrors.Attributes{
		Message:  "task not found",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTaskConflict, xerrors.Attributes{
		Message:  "task conflict",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeTaskCompleted, xerrors.Attributes{
		Message:  "task already completed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTaskExhausted, xerrors.Attributes{
		Message:  "task retries exhausted",
		Severity: xerrors.SeverityCritical,
		Alert:    true,
	})
	xerrors.Register(CodeTaskValidation, xerrors.Attributes{
		Message:  "task validation failed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTaskPublish, xerrors.Attributes{
		Message:   "failed to publish task",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	// Action 已执行但结果无法序列化，重试可能重复上链，因此不可重试。
	xerrors.Register(CodeTaskResult, xerrors.Attributes{
		Message:  "action result is not JSON encodable",
		Severity: xerrors.SeverityCritical,
		Alert:    true,
	})
}

// IsTaskError 判断错误是否为指定的任务错误码。
func IsTaskError(err error, target xerrors.Code) bool {
	if err == nil {
		return false
	}
	for _, known := range []*xerrors.Error{ErrTaskNotFound, ErrTaskConflict, ErrTaskCompleted, ErrTaskExhausted} {
		if stdErrors.Is(err, known) {
			return known.Code() == target
		}
	}
	return false
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	cloned := make(map[string]any, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}
	return cloned
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneTask(task *Task) *Task {
	clone := *task
	clone.Arguments = cloneRaw(task.Arguments)
	clone.Result = cloneRaw(task.Result)
	clone.Metadata = cloneMetadata(task.Metadata)
	return &clone
}

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}
