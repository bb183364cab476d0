package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"AgentKit-Chain/internal/adapter"
)

func newInvokeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "invoke <action> [arguments-json]",
		Short: "Run one action and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			a, err := rt.agent.Action(args[0])
			if err != nil {
				return err
			}
			raw := []byte("{}")
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("arguments are not valid JSON: %s", args[1])
				}
				raw = []byte(args[1])
			}
			res := adapter.NewTrampoline("cli", rt.agent, adapter.WithObserver(rt.metrics)).Invoke(ctx, a, raw)
			fmt.Fprintln(cmd.OutOrStdout(), res.JSON())
			if !res.OK() {
				return fmt.Errorf("%s failed: %s", a.Name, res.Error.Code)
			}
			return nil
		},
	}
}
