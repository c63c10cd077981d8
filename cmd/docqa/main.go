// Package main 是命令行工具 docqa 的入口点。
package main

import (
	"context"
	"docqa-go/pkg/log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}
