package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"AgentKit-Chain/internal/adapter/toolspec"
)

func newToolsCommand(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool list published for a format (mcp, eino, openai)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := toolspec.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			listing, err := toolspec.Render(ctx, f, rt.agent, rt.agent.Actions())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(listing)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(toolspec.FormatMCP), "tool format: mcp, eino or openai")
	return cmd
}
