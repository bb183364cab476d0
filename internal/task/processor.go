package task

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"strconv"
	"time"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/observability/alerting"
	"AgentKit-Chain/pkg/logger"
)

// Executor 按名称执行 Action，参数为原始 JSON。*agent.Agent 实现了该接口。
type Executor interface {
	Invoke(ctx context.Context, name string, raw []byte) (any, error)
}

// Observer 记录任务状态迁移，通常由 metrics 实现。
type Observer interface {
	ObserveTask(status string)
}

// 任务观测使用的状态标签。
const (
	observeSucceeded = "succeeded"
	observeFailed    = "failed"
	observeRetried   = "retried"
)

// Processor 负责从队列消费任务并交给 Executor 执行。
type Processor struct {
	executor    Executor
	store       Store
	consumer    Consumer
	producer    Producer
	workerCount int
	retryDelay  time.Duration
	timeout     time.Duration
	logger      *slog.Logger
	alerter     alerting.Dispatcher
	observer    Observer
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定调试日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = logger }
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithRetryDelay 设置可重试失败后重新入队前的等待时间。
func WithRetryDelay(delay time.Duration) ProcessorOption {
	return func(p *Processor) { p.retryDelay = delay }
}

// WithExecutionTimeout 限制单次 Action 执行时长。
func WithExecutionTimeout(timeout time.Duration) ProcessorOption {
	return func(p *Processor) { p.timeout = timeout }
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) { p.alerter = dispatcher }
}

// WithTaskObserver 配置任务状态观测。
func WithTaskObserver(observer Observer) ProcessorOption {
	return func(p *Processor) { p.observer = observer }
}

// NewProcessor 构造 Processor。
func NewProcessor(executor Executor, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executor:    executor,
		store:       store,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动任务处理循环，阻塞直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil || p.store == nil || p.executor == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "任务处理器未初始化")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, taskID string) error {
	task, err := p.store.Claim(ctx, taskID)
	if err != nil {
		if stdErrors.Is(err, ErrTaskNotFound) || stdErrors.Is(err, ErrTaskCompleted) ||
			stdErrors.Is(err, ErrTaskExhausted) || stdErrors.Is(err, ErrTaskConflict) {
			p.logDebug("跳过任务", slog.String("task_id", taskID), slog.String("reason", err.Error()))
			return nil
		}
		logger.L().Error("领取任务失败", slog.Any("error", err), slog.String("task_id", taskID))
		return err
	}

	execCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()
	output, execErr := p.executor.Invoke(execCtx, task.Action, task.Arguments)
	if execErr != nil {
		return p.handleFailure(ctx, task, execErr)
	}

	result, err := json.Marshal(output)
	if err != nil {
		return p.handleFailure(ctx, task, xerrors.Wrap(CodeTaskResult, err, "序列化 Action 结果失败"))
	}
	if err := p.store.MarkSucceeded(ctx, task.ID, result); err != nil {
		logger.L().Error("标记任务成功状态失败", slog.Any("error", err), slog.String("task_id", task.ID))
		return err
	}
	p.observe(observeSucceeded)
	logger.Audit().Info("任务执行成功",
		slog.String("task_id", task.ID),
		slog.String("action", task.Action),
		slog.Int("attempts", task.Attempts),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// handleFailure 根据错误码属性决定重试或终止。只有存储与队列错误会返回给消费者。
func (p *Processor) handleFailure(ctx context.Context, task *Task, execErr error) error {
	classified := xerrors.Classify(execErr, xerrors.CodeExecutorFailure)
	code := classified.Code()
	retryable := classified.Retryable()
	terminal := !retryable || task.Attempts >= task.MaxRetries

	if err := p.store.MarkFailed(ctx, task.ID, code, execErr.Error(), terminal); err != nil {
		logger.L().Error("标记任务失败状态出错", slog.Any("error", err), slog.String("task_id", task.ID))
		return err
	}
	logger.Audit().Warn("任务执行失败",
		slog.String("task_id", task.ID),
		slog.String("action", task.Action),
		slog.Bool("terminal", terminal),
		slog.String("error", execErr.Error()),
		slog.String("error_code", string(code)),
		slog.Int("attempts", task.Attempts),
		slog.Int("max_retries", task.MaxRetries),
	)

	stage := "retry"
	switch {
	case !retryable:
		stage = "non_retryable"
	case terminal:
		stage = "exhausted"
	}
	if classified.ShouldAlert() || stage == "exhausted" {
		p.emitAlert(ctx, task, execErr, stage)
	}

	if terminal {
		p.observe(observeFailed)
		return nil
	}
	p.observe(observeRetried)
	if p.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.retryDelay):
		}
	}
	if err := p.producer.Publish(ctx, task.ID); err != nil {
		return xerrors.Wrap(CodeTaskPublish, err, "任务 "+task.ID+" 重投失败")
	}
	p.logDebug("任务已重新排队", slog.String("task_id", task.ID), slog.Int("attempts", task.Attempts))
	return nil
}

func (p *Processor) emitAlert(ctx context.Context, task *Task, cause error, stage string) {
	if p.alerter == nil {
		return
	}
	event := alerting.EventFromError(cause)
	event.TaskID = task.ID
	event.Action = task.Action
	event.Attempts = task.Attempts
	event.MaxRetries = task.MaxRetries
	if event.Metadata == nil {
		event.Metadata = map[string]string{}
	} else {
		metadata := make(map[string]string, len(event.Metadata)+2)
		for k, v := range event.Metadata {
			metadata[k] = v
		}
		event.Metadata = metadata
	}
	event.Metadata["stage"] = stage
	event.Metadata["attempt"] = strconv.Itoa(task.Attempts)
	if err := p.alerter.Notify(ctx, event); err != nil {
		logger.L().Error("告警通知失败",
			slog.Any("error", err),
			slog.String("task_id", task.ID),
			slog.String("stage", stage),
		)
	}
}

func (p *Processor) observe(status string) {
	if p.observer != nil {
		p.observer.ObserveTask(status)
	}
}

func (p *Processor) logDebug(msg string, attrs ...slog.Attr) {
	if p.logger == nil {
		return
	}
	p.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}
