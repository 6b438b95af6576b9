package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atd/internal/config"
	"atd/internal/credstore"
	"atd/internal/engine"
	"atd/internal/httpapi"
	"atd/internal/kis"
	"atd/internal/notify"
	"atd/internal/util"
)

func main() {
	// Load config.
	cfgPath := "config/atd.yaml"
	if p := os.Getenv("ATD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	util.SetDefault(logger)

	// Credential store.
	creds, err := credstore.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		log.Fatalf("opening credential store: %v", err)
	}
	defer creds.Close()

	// Notification channel.
	var notifier notify.Notifier = notify.Nop{}
	if cfg.Discord.WebhookURL != "" {
		notifier = notify.NewDiscord(cfg.Discord.WebhookURL, logger)
	} else {
		logger.Warn("no Discord webhook configured, notifications disabled")
	}

	// Broker gateway and order engine.
	broker := kis.NewClient(creds, cfg.KIS.BaseURL, cfg.KIS.SandboxURL, logger)
	eng := engine.New(creds, broker, notifier, logger, cfg.Trading.PostOrderBalanceDelay())

	srv := httpapi.NewServer(eng, creds, broker.Tokens(), notifier,
		cfg.Auth.Username, cfg.Auth.Password, cfg.Server.StaticDir, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("ATD server listening", "addr", addr, "webhook", "/order")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	if err := notifier.Send(ctx, notify.StartupEvent(addr)); err != nil {
		logger.Warn("startup notification failed", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down ATD server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Let in-flight webhook handoffs and delayed balance checks finish.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := srv.Drain(drainCtx); err != nil {
		logger.Warn("webhook drain incomplete", "error", err)
	}
	if err := eng.Drain(drainCtx); err != nil {
		logger.Warn("post-order check drain incomplete", "error", err)
	}

	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer notifyCancel()
	if err := notifier.Send(notifyCtx, notify.ShutdownEvent()); err != nil {
		logger.Warn("shutdown notification failed", "error", err)
	}
}
