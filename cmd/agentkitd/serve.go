package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"AgentKit-Chain/internal/adapter"
	"AgentKit-Chain/internal/adapter/openaitool"
	"AgentKit-Chain/internal/api"
	"AgentKit-Chain/internal/chat"
	"AgentKit-Chain/internal/observability/alerting"
	"AgentKit-Chain/internal/task"
	"AgentKit-Chain/pkg/logger"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background task processor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if address != "" {
				root.cfg.Server.Address = address
			}
			return runServe(cmd.Context(), root)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address, overrides server.address")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions) error {
	cfg := root.cfg
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	if err := rt.agent.Start(ctx); err != nil {
		return err
	}

	store, err := task.NewStore(ctx, cfg.Storage.TaskStore)
	if err != nil {
		return err
	}
	queue, err := task.NewQueue(cfg.TaskQueue)
	if err != nil {
		_ = store.Close()
		return err
	}
	service := task.NewService(store, queue, cfg.Storage.TaskStore.MaxRetries, task.WithCatalog(rt.agent))
	defer func() {
		if err := service.Close(); err != nil {
			logger.L().Warn("关闭任务服务失败", slog.Any("error", err))
		}
	}()

	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if cfg.Alerting.Webhook.URL != "" {
		notifiers = append(notifiers, alerting.NewWebhook(cfg.Alerting.Webhook.URL, cfg.Alerting.Webhook.Timeout))
	}
	processor := task.NewProcessor(rt.agent, store, queue, queue,
		task.WithWorkerCount(cfg.Server.Workers),
		task.WithRetryDelay(time.Second),
		task.WithExecutionTimeout(cfg.TaskQueue.ExecutionTimeout),
		task.WithAlertDispatcher(alerting.NewFanout(notifiers...)),
		task.WithTaskObserver(rt.metrics),
		task.WithProcessorLogger(logger.Named("task")),
	)
	processorCtx, cancelProcessor := context.WithCancel(ctx)
	defer cancelProcessor()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("任务处理器异常退出", slog.Any("error", err))
		}
	}()

	opts := []api.Option{
		api.WithTaskService(service),
		api.WithAuth(cfg.Server.Auth),
	}
	if cfg.Server.EnableMetrics {
		opts = append(opts, api.WithMetrics(rt.metrics))
	}
	runner, err := buildChatRunner(rt)
	if err != nil {
		return err
	}
	if runner != nil {
		opts = append(opts, api.WithChatRunner(runner))
	} else {
		logger.L().Info("未配置大模型 API Key，/api/v1/chat 不可用")
	}

	server := api.NewServer(cfg.Server.Address, rt.agent, opts...)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildChatRunner 以 OpenAI 函数工具的形式把 Action 交给模型。未配置模型时返回 nil。
func buildChatRunner(rt *runtime) (*chat.Runner, error) {
	client, err := buildLLM(rt.cfg.LLM)
	if err != nil || client == nil {
		return nil, err
	}
	tools, err := openaitool.New(rt.agent, rt.agent.Actions(), adapter.WithObserver(rt.metrics))
	if err != nil {
		return nil, err
	}
	return chat.NewRunner(client, tools, chat.Config{
		MaxSteps:    rt.cfg.Agent.MaxSteps,
		StepTimeout: rt.cfg.Agent.LLMTimeout,
	})
}
