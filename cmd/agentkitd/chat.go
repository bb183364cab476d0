package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"AgentKit-Chain/internal/chat"
	"AgentKit-Chain/internal/llm"
)

func newChatCommand(root *rootOptions) *cobra.Command {
	var showSteps bool
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Talk to the agent; without a prompt, start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			runner, err := buildChatRunner(rt)
			if err != nil {
				return err
			}
			if runner == nil {
				return errors.New("未配置大模型: 设置 llm.openai.api_key 或 AGENTKIT_LLM_OPENAI_API_KEY")
			}

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				reply, err := runner.Run(ctx, strings.Join(args, " "))
				printReply(out, reply, showSteps)
				return err
			}
			return repl(cmd, runner, showSteps)
		},
	}
	cmd.Flags().BoolVar(&showSteps, "steps", false, "print every tool call")
	return cmd
}

// repl 逐行读取输入，保留完整对话历史。
func repl(cmd *cobra.Command, runner *chat.Runner, showSteps bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	var history []llm.Message

	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "exit", "quit":
			return nil
		}
		reply, err := runner.Continue(ctx, append(history, llm.Message{Role: llm.RoleUser, Content: line}))
		printReply(out, reply, showSteps)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		} else if reply != nil {
			history = reply.Messages
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func printReply(out io.Writer, reply *chat.Reply, showSteps bool) {
	if reply == nil {
		return
	}
	if showSteps {
		for _, step := range reply.Steps {
			status := "ok"
			if !step.OK {
				status = "error"
			}
			fmt.Fprintf(out, "  [%s] %s %s -> %s\n", status, step.Tool, step.Arguments, step.Result)
		}
	}
	if reply.Content != "" {
		fmt.Fprintln(out, reply.Content)
	}
}
