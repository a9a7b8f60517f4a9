// Command careerlog はキャリア記録サービスのコマンドラインクライアント。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hitoshi/careerlog/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := app.Run(ctx, app.Streams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, app.FormatError(err))
		stop()
		os.Exit(1)
	}
}
