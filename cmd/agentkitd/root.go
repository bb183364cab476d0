package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"AgentKit-Chain/internal/config"
	"AgentKit-Chain/pkg/logger"
)

// annotationStdio 标记占用 stdout 的子命令。
const annotationStdio = "agentkit/stdio"

// rootOptions 保存所有子命令共享的配置来源。
type rootOptions struct {
	configPath string
	viper      *viper.Viper
	cfg        *config.Config
	// stdioLogs 为 true 时日志改写到 stderr，stdout 留给 MCP 协议。
	stdioLogs bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{viper: config.NewViper()}

	cmd := &cobra.Command{
		Use:          "agentkitd",
		Short:        "AgentKit exposes Solana wallet actions to AI agents",
		Long:         "agentkitd runs the AgentKit HTTP API and task processor, serves the action set over MCP, and prints tool listings for agent frameworks.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.stdioLogs = cmd.Annotations[annotationStdio] == "true"
			return opts.load()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return logger.Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("AGENTKIT_CONFIG"), "config file (JSON or YAML)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("rpc-url", "", "Solana RPC endpoint or cluster name (mainnet-beta, devnet, testnet)")
	flags.Bool("sign-only", false, "sign transactions and return them instead of submitting")
	bindings := map[string]string{
		"log.level":       "log-level",
		"web3.rpc_url":    "rpc-url",
		"agent.sign_only": "sign-only",
	}
	for key, flag := range bindings {
		_ = opts.viper.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(
		newServeCommand(opts),
		newMCPCommand(opts),
		newToolsCommand(opts),
		newInvokeCommand(opts),
		newChatCommand(opts),
	)
	return cmd
}

// load 读取配置并初始化全局日志。
func (o *rootOptions) load() error {
	cfg, err := config.LoadWith(o.viper, o.configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if o.stdioLogs && len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stderr"}
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	o.cfg = cfg
	return nil
}
