package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"AgentKit-Chain/internal/adapter"
	"AgentKit-Chain/internal/adapter/mcptool"
	"AgentKit-Chain/pkg/logger"
)

func newMCPCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "mcp",
		Short:       "Serve the action set as MCP tools over stdio",
		Annotations: map[string]string{annotationStdio: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer rt.close(context.Background())
			if err := rt.agent.Start(ctx); err != nil {
				return err
			}

			tools, err := mcptool.New(rt.agent, rt.agent.Actions(), adapter.WithObserver(rt.metrics))
			if err != nil {
				return err
			}
			srv := mcptool.NewServer("agentkit", version, tools)
			logger.L().Info("mcp server ready", slog.Int("tools", len(tools.Tools())), slog.Any("dropped", tools.Dropped()))

			err = server.NewStdioServer(srv).Listen(ctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
