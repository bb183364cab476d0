package task

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/logger"
)

// Catalog 用于在提交阶段确认 Action 存在。*agent.Agent 实现了该接口。
type Catalog interface {
	Action(name string) (*action.Action, error)
}

// Service 负责任务的创建与查询。
type Service struct {
	store      Store
	producer   Producer
	maxRetries int
	catalog    Catalog
}

// ServiceOption 定义 Service 的可选配置。
type ServiceOption func(*Service)

// WithCatalog 让 Submit 拒绝未注册的 Action。
func WithCatalog(catalog Catalog) ServiceOption {
	return func(s *Service) { s.catalog = catalog }
}

// NewService 构造任务服务，maxRetries 非正时使用 3。
func NewService(store Store, producer Producer, maxRetries int, opts ...ServiceOption) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	s := &Service{store: store, producer: producer, maxRetries: maxRetries}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Submit 创建一个新的任务并推送到队列。相同 ID 的重复提交返回已有任务。
func (s *Service) Submit(ctx context.Context, req Request) (*Task, error) {
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化")
	}
	name := strings.TrimSpace(req.Action)
	if name == "" {
		return nil, xerrors.New(CodeTaskValidation, "action 不能为空")
	}
	if s.catalog != nil {
		if _, err := s.catalog.Action(name); err != nil {
			return nil, xerrors.Wrap(CodeTaskValidation, err, "未知的 action")
		}
	}
	arguments := bytes.TrimSpace(req.Arguments)
	if len(arguments) == 0 || bytes.Equal(arguments, []byte("null")) {
		arguments = []byte("{}")
	}
	if !json.Valid(arguments) {
		return nil, xerrors.New(CodeTaskValidation, "arguments 不是合法的 JSON")
	}

	taskID := strings.TrimSpace(req.ID)
	if taskID != "" {
		existing, err := s.store.Get(ctx, taskID)
		if err == nil {
			return existing, nil
		}
		if !stdErrors.Is(err, ErrTaskNotFound) {
			return nil, err
		}
	} else {
		taskID = uuid.NewString()
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.maxRetries
	}
	task := &Task{
		ID:         taskID,
		Action:     name,
		Arguments:  json.RawMessage(arguments),
		Metadata:   cloneMetadata(req.Metadata),
		Status:     StatusPending,
		MaxRetries: maxRetries,
	}
	if err := s.store.Create(ctx, task); err != nil {
		if stdErrors.Is(err, ErrTaskConflict) {
			if existing, getErr := s.store.Get(ctx, taskID); getErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, taskID); err != nil {
		logger.L().Error("任务入队失败", slog.Any("error", err), slog.String("task_id", taskID))
		wrapped := xerrors.Wrap(CodeTaskPublish, err, "发布任务到队列失败")
		_ = s.store.MarkFailed(ctx, taskID, CodeTaskPublish, wrapped.Error(), true)
		return nil, wrapped
	}
	logger.Audit().Info("任务入队成功",
		slog.String("task_id", taskID),
		slog.String("action", name),
		slog.Int("max_retries", maxRetries),
	)
	return task, nil
}

// Get 返回指定任务的状态。
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的任务列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Task, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.List(ctx, buildListOptions(opts))
}

// Stats 返回符合过滤条件的任务统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (TaskStats, error) {
	if s.store == nil {
		return TaskStats{}, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.Stats(ctx, buildListOptions(opts))
}

// Close 释放存储与队列资源。
func (s *Service) Close() error {
	var errs []error
	if s.producer != nil {
		errs = append(errs, s.producer.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return stdErrors.Join(errs...)
}

// WaitUntilCompleted 轮询任务直到进入终态或 ctx 结束。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Task, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.Done() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
