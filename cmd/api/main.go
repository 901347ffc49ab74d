package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FLANsa/clinic-ai-bot/cmd/mainconfig"
	"github.com/FLANsa/clinic-ai-bot/internal/api/router"
	appbootstrap "github.com/FLANsa/clinic-ai-bot/internal/app/bootstrap"
	appconfig "github.com/FLANsa/clinic-ai-bot/internal/config"
	"github.com/FLANsa/clinic-ai-bot/internal/dispatch"
	"github.com/FLANsa/clinic-ai-bot/internal/http/handlers"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-ai-bot API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	ctx := context.Background()
	loadAWS := func(ctx context.Context) (aws.Config, error) { return mainconfig.LoadAWSConfig(ctx, cfg) }

	metricsHandler, registry := setupMetrics()
	rt, err := appbootstrap.BuildRuntime(ctx, cfg, logger,
		appbootstrap.WithAWSConfigLoader(loadAWS),
		appbootstrap.WithRegisterer(registry),
	)
	if err != nil {
		logger.Error("failed to build dialogue runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	dispatcher, err := appbootstrap.BuildDispatcher(ctx, cfg, rt, loadAWS, appbootstrap.RoleProducer, logger)
	if err != nil {
		logger.Error("failed to build dispatcher", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      buildRouter(cfg, rt, dispatcher, metricsHandler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown timed out", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics builds a private registry with the Go runtime collectors.
func setupMetrics() (http.Handler, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), registry
}

// dispatchProcessor lets the synchronous HTTP path wait on the worker pool.
type dispatchProcessor struct {
	dispatcher *dispatch.Dispatcher
	inline     *dispatch.Processor
	logger     *logging.Logger
}

// Process waits on the local worker pool when there is one, else runs
// inline. A caller that gave up gets an empty reply.
func (p dispatchProcessor) Process(ctx context.Context, job dispatch.Job) dispatch.Reply {
	if p.dispatcher != nil {
		reply, err := p.dispatcher.Process(ctx, job)
		if err == nil {
			return reply
		}
		if ctx.Err() != nil {
			return dispatch.Reply{Channel: job.Channel, UserID: job.UserID}
		}
		p.logger.Warn("queued processing unavailable; handling inline", "error", err)
	}
	return p.inline.Process(ctx, job)
}

func buildRouter(cfg *appconfig.Config, rt *appbootstrap.Runtime, dispatcher *dispatch.Dispatcher, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	checks := make(map[string]handlers.Pinger, len(rt.Checks))
	for name, check := range rt.Checks {
		checks[name] = handlers.PingFunc(check)
	}

	// Only the in-memory queue has workers in this process to wait on.
	processor := dispatchProcessor{inline: rt.Processor, logger: logger}
	if cfg.UseMemoryQueue {
		processor.dispatcher = dispatcher
	}
	var submitter handlers.JobSubmitter
	if dispatcher != nil {
		submitter = dispatcher
	}

	return router.New(&router.Config{
		Logger:             logger,
		Messages:           handlers.NewMessagesHandler(processor, submitter, logger),
		TestChat:           handlers.NewTestChatHandler(rt.Processor),
		Handoffs:           handlers.NewHandoffsHandler(rt.Handoffs, logger),
		Health:             handlers.NewHealthHandler(checks),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
}
