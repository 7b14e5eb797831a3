package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerdneilsfield/gemma-translator/internal/cli"
)

// Version information
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 第一次信号只取消上下文，恢复默认处理后第二次信号直接终止进程
	go func() {
		<-ctx.Done()
		stop()
	}()

	os.Exit(cli.Execute(ctx, Version, Commit, BuildDate))
}
