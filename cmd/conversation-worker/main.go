package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/FLANsa/clinic-ai-bot/internal/config"
	conversationworker "github.com/FLANsa/clinic-ai-bot/internal/worker/conversation"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := conversationworker.Run(ctx, cfg, logger); err != nil {
		logger.Error("conversation worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("conversation worker stopped")
}
