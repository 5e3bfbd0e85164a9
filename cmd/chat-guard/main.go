package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chat-guard/internal/bot/onebot"
	"chat-guard/internal/bot/telegram"
	"chat-guard/internal/config"
	"chat-guard/internal/crash"
	"chat-guard/internal/handler"
	"chat-guard/internal/logger"
	"chat-guard/internal/service"
	"chat-guard/internal/storage"
	"chat-guard/internal/violation"
)

func main() {
	// 设置崩溃处理器，确保在任何 panic 时都能记录堆栈信息
	defer crash.RecoverWithStackAndExit("main")

	crash.SetupCrashHandler()

	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Database.Enabled {
		if err := storage.Initialize(cfg); err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		service.InitRepositories()
		logger.Info("Database connection established and repositories initialized")
	}
	defer storage.Close()

	policies, err := service.NewPolicyRegistry(service.PoliciesFromConfig(cfg))
	if err != nil {
		logger.Fatalf("Invalid moderation policy: %v", err)
	}
	if policies.Len() == 0 {
		logger.Warning("No groups configured, every message will pass through")
	}

	tracker := violation.New(violation.WithWindow(cfg.Moderation.DecayWindow))
	moderator := handler.NewModerator(policies, tracker, handler.DefaultMaxConcurrent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	moderator.StartStatusMonitoring(ctx)
	metricsServer := startMetricsServer(cfg.Metrics)

	var stopAdapter func()
	switch cfg.Bot.Adapter {
	case config.AdapterTelegram:
		stopAdapter = startTelegram(ctx, cfg, moderator)
	case config.AdapterOneBot:
		stopAdapter = startOneBot(ctx, cfg, moderator)
	default:
		logger.Fatalf("Unknown adapter %q", cfg.Bot.Adapter)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	stopAdapter()

	logger.Info("Waiting for message handlers to complete...")
	done := make(chan struct{})
	go func() {
		moderator.WaitForHandlers()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All message handlers completed")
	case <-time.After(30 * time.Second):
		logger.Warning("Timeout waiting for message handlers, proceeding with shutdown")
	}

	tracker.Stop()
	cancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warningf("Metrics server shutdown error: %v", err)
		}
	}

	logger.Info("chat-guard gracefully stopped")
}

// startTelegram runs the webhook server and update handler. The returned
// function stops both.
func startTelegram(ctx context.Context, cfg *config.Config, moderator *handler.Moderator) func() {
	svc, server, err := telegram.Initialize(ctx, cfg, moderator.GetDetailedStatus)
	if err != nil {
		logger.Fatalf("Failed to initialize telegram bot: %v", err)
	}

	moderator.RegisterClient(svc)
	svc.OnGroupMessage(moderator.Dispatch)

	crash.SafeGoroutine("http-server", func() {
		if err := server.Start(); err != nil {
			logger.Fatalf("HTTP server error: %v", err)
		}
	})

	// Give server time to start
	time.Sleep(500 * time.Millisecond)
	logger.Info("HTTP server is ready, starting bot handler...")
	crash.SafeGoroutine("telegram-handler", svc.Start)

	return func() {
		svc.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warningf("HTTP server shutdown error: %v", err)
		}
	}
}

// startOneBot connects to the OneBot websocket. The returned function
// disconnects.
func startOneBot(ctx context.Context, cfg *config.Config, moderator *handler.Moderator) func() {
	client := onebot.New(cfg.Bot.OneBot)
	moderator.RegisterClient(client)
	client.OnGroupMessage(moderator.Dispatch)

	if err := client.Start(ctx); err != nil {
		logger.Fatalf("Failed to start OneBot client: %v", err)
	}
	return client.Stop
}

// startMetricsServer exposes prometheus metrics, nil when disabled
func startMetricsServer(cfg config.MetricsConfig) *http.Server {
	if cfg.Listen == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	crash.SafeGoroutine("metrics-server", func() {
		logger.Infof("Serving metrics on %s%s", cfg.Listen, cfg.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server error: %v", err)
		}
	})
	return server
}
