package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	multimerchant "github.com/taimast/multi-merchant"
	"github.com/taimast/multi-merchant/internal/config"
	"github.com/taimast/multi-merchant/internal/domain"
	"github.com/taimast/multi-merchant/internal/merchant"
	"github.com/taimast/multi-merchant/internal/repository"
	"github.com/taimast/multi-merchant/internal/service"
	"github.com/taimast/multi-merchant/internal/telegram"
	"github.com/taimast/multi-merchant/internal/webhook"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(multimerchant.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Construct enabled merchant adapters
	merchants := make(map[domain.MerchantID]merchant.Merchant)
	for _, mc := range cfg.MerchantConfigs() {
		m, err := merchant.New(mc)
		if err != nil {
			slog.Error("failed to construct merchant", "merchant", mc.Merchant, "error", err)
			os.Exit(1)
		}
		merchants[m.ID()] = m
		defer m.Close()
		slog.Info("merchant enabled", "merchant", m.ID())
	}
	if len(merchants) == 0 {
		slog.Warn("no merchants enabled")
	}

	// Optional Telegram notifier
	var notifier service.Notifier
	if cfg.BotToken != "" {
		b, err := bot.New(cfg.BotToken)
		if err != nil {
			slog.Error("failed to create telegram bot", "error", err)
			os.Exit(1)
		}
		notifier = telegram.NewNotifier(b, cfg.NotifyChatID)
	}

	store := repository.NewInvoiceStore(pool)
	paymentService := service.NewPaymentService(store, notifier)

	// Watcher: expiry sweep + paid polling
	watcher := service.NewWatcher(
		paymentService,
		merchants,
		time.Duration(cfg.PollInterval)*time.Second,
		cfg.PollConcurrency,
	)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("watcher stopped", "error", err)
		}
	}()

	// Webhook server
	mux := http.NewServeMux()
	mux.Handle("/webhook/yookassa", webhook.YooKassaHandler(paymentService))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      webhook.Logging(webhook.Recover(mux)),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	go func() {
		slog.Info("webhook server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webhook server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("webhook server shutdown failed", "error", err)
	}
}
