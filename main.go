package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AnyUserName/tiff2jp2/cmd"
	"github.com/AnyUserName/tiff2jp2/internal/logging"
)

var GitSHA = "NA"

func main() {
	// First signal cancels the batch between images; the second one kills.
	ctx, cnc := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cnc()
	go func() {
		<-ctx.Done()
		cnc()
	}()
	ctx = logging.AppendCtx(ctx, slog.Group("tiff2jp2", slog.String("git", GitSHA)))
	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
