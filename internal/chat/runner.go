// Package chat 实现基于工具调用的推理循环：把 Action 以函数工具的形式交给模型，
// 执行模型发起的调用并回填结果，直到模型给出文本回复或达到步数上限。
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"AgentKit-Chain/internal/adapter"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/pkg/logger"
)

// DefaultSystemPrompt 在未配置系统提示词时使用。
const DefaultSystemPrompt = "You are an on-chain assistant operating a wallet through tools. " +
	"Use the tools to read balances and move funds, report transaction signatures verbatim, " +
	"and never invent addresses or amounts the user did not provide."

// maxToolResultBytes 限制回填给模型的单个工具结果长度。
const maxToolResultBytes = 48 * 1024

// ErrStepLimit 表示模型在步数上限内没有给出最终回复。
var ErrStepLimit = errors.New("chat: step limit reached")

// Tools 是推理循环所需的工具集，*openaitool.Toolset 实现了该接口。
type Tools interface {
	Definitions() []llm.ToolDefinition
	Invoke(ctx context.Context, name, arguments string) adapter.Result
}

// Config 控制推理循环。
type Config struct {
	MaxSteps     int
	StepTimeout  time.Duration
	SystemPrompt string
	Temperature  float64
}

func (c *Config) applyDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 8
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
}

// Step 记录一次工具调用。
type Step struct {
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	OK        bool   `json:"ok"`
}

// Reply 是一次对话的结果。
type Reply struct {
	Content      string        `json:"content"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Steps        []Step        `json:"steps"`
	Messages     []llm.Message `json:"-"`
}

// Runner 驱动模型与工具之间的循环。
type Runner struct {
	client llm.Client
	tools  Tools
	cfg    Config
	log    *slog.Logger
}

// NewRunner 构造 Runner。
func NewRunner(client llm.Client, tools Tools, cfg Config) (*Runner, error) {
	if client == nil {
		return nil, errors.New("chat: 未配置大模型客户端")
	}
	if tools == nil {
		return nil, errors.New("chat: 未配置工具集")
	}
	cfg.applyDefaults()
	return &Runner{client: client, tools: tools, cfg: cfg, log: logger.Named("chat")}, nil
}

// Run 以单条用户输入开始新对话。
func (r *Runner) Run(ctx context.Context, prompt string) (*Reply, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("chat: prompt 不能为空")
	}
	return r.Continue(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
}

// Continue 在已有对话历史上继续推理。历史中没有系统消息时自动补充。
func (r *Runner) Continue(ctx context.Context, history []llm.Message) (*Reply, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	if len(history) == 0 || history[0].Role != llm.RoleSystem {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: r.cfg.SystemPrompt})
	}
	messages = append(messages, history...)

	tools := r.tools.Definitions()
	reply := &Reply{}
	for step := 0; step < r.cfg.MaxSteps; step++ {
		resp, err := r.generate(ctx, llm.Request{Messages: messages, Tools: tools, Temperature: r.cfg.Temperature})
		if err != nil {
			reply.Messages = messages
			return reply, fmt.Errorf("chat: 第 %d 步调用模型失败: %w", step+1, err)
		}
		messages = append(messages, resp.Message)
		reply.FinishReason = resp.FinishReason

		if len(resp.Message.ToolCalls) == 0 {
			reply.Content = resp.Message.Content
			reply.Messages = messages
			return reply, nil
		}

		for _, call := range resp.Message.ToolCalls {
			result := r.tools.Invoke(ctx, call.Name, call.Arguments)
			text := adapter.Truncate(result.JSON(), maxToolResultBytes)
			reply.Steps = append(reply.Steps, Step{Tool: call.Name, Arguments: call.Arguments, Result: text, OK: result.OK()})
			r.log.Debug("tool call", slog.String("tool", call.Name), slog.Bool("ok", result.OK()), slog.Int("step", step+1))
			messages = append(messages, llm.Message{Role: llm.RoleTool, Content: text, ToolCallID: call.ID})
		}
	}
	reply.Messages = messages
	return reply, fmt.Errorf("%w (%d)", ErrStepLimit, r.cfg.MaxSteps)
}

func (r *Runner) generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if r.cfg.StepTimeout <= 0 {
		return r.client.Generate(ctx, req)
	}
	stepCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeout)
	defer cancel()
	return r.client.Generate(stepCtx, req)
}
