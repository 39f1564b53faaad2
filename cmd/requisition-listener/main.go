package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"smartquote/internal/app"
	"smartquote/internal/config"
	"smartquote/internal/listener"
	"smartquote/internal/logging"
)

func main() {
	cfg, err := config.Load()
	must(err)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	must(err)
	defer a.Close()

	a.RefreshCatalog(ctx, cfg.DefaultUnit)

	svc := listener.NewService(a.DB, cfg, a.Processor, logger)
	if err := svc.Serve(ctx); err != nil {
		logger.Error("listener exited", zap.Error(err))
		os.Exit(1)
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
