package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tour",
		Short:         "圣诞工作坊参观排期优化工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newOptimizeCmd())
	root.AddCommand(newEvaluateCmd())

	return root
}

func main() {
	// 监听 CTRL+C，取消后优化在当前一代结束前停止
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("错误:", err)
		stop()
		os.Exit(1)
	}
}
