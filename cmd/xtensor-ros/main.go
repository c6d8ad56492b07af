// xtensor-ros 是数组消息的命令行工具：查看类型、编解码线上字节，以及通过 topic 收发数组。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/RoboStack/xtensor-ros/application"
)

func main() {
	os.Exit(run())
}

func run() int {
	app := application.New()
	args, err := app.Run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "xtensor-ros: load config: %v\n", err)
		return 2
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &env{
		app:    app,
		cfg:    app.Config(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	if err := dispatch(ctx, env, args); err != nil {
		if err == errUsage {
			return 2
		}
		app.Logger("cli").Error("command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "xtensor-ros: %v\n", err)
		return 1
	}
	return 0
}
