package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version 在构建时通过 -ldflags 注入。
var version = "dev"

// main 是 AgentKit 守护进程与命令行工具的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "agentkitd 运行失败: %v\n", err)
		os.Exit(1)
	}
}
