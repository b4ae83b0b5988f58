package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kveex/Aktt-Telegram-Bot/internal/config"
	"github.com/kveex/Aktt-Telegram-Bot/internal/domain"
	"github.com/kveex/Aktt-Telegram-Bot/internal/feature/lookup"
	"github.com/kveex/Aktt-Telegram-Bot/internal/feature/subscription"
	"github.com/kveex/Aktt-Telegram-Bot/internal/health"
	"github.com/kveex/Aktt-Telegram-Bot/internal/logging"
	"github.com/kveex/Aktt-Telegram-Bot/internal/notify"
	"github.com/kveex/Aktt-Telegram-Bot/internal/store"
	"github.com/kveex/Aktt-Telegram-Bot/internal/telegram"
	"github.com/kveex/Aktt-Telegram-Bot/internal/upstream"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	healthShutdownTimeout   = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(cfg.FormatRedacted())
		return
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
	}).Info("configuration loaded")

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}
	cancelIndexes()

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	scheduleAPI, err := upstream.New(cfg.ScheduleAPIURL, logger)
	if err != nil {
		logger.WithError(err).Error("schedule api client setup error")
		fmt.Fprintf(os.Stderr, "schedule api client setup error: %v\n", err)
		os.Exit(1)
	}

	subscriptionRepository := domain.NewSubscriptionRepository(mongoManager.Subscriptions())
	statsProvider := store.NewStatsProvider(mongoManager.Subscriptions())
	lookupService := lookup.NewService(scheduleAPI, logger)
	subscriptionService := subscription.NewService(subscriptionRepository, logger)

	tgClient, err := telegram.NewClient(cfg, lookupService, subscriptionService, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	notifier, err := notify.NewNotifier(scheduleAPI, subscriptionRepository, scheduleAPI, tgClient, cfg.CheckInterval, logger)
	if err != nil {
		logger.WithError(err).Error("notifier setup error")
		fmt.Fprintf(os.Stderr, "notifier setup error: %v\n", err)
		os.Exit(1)
	}

	healthServer := health.NewServer(cfg.HTTPPort, mongoManager, scheduleAPI, statsProvider, logger)

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workCtx, cancelWork := context.WithCancel(context.Background())
	tgDone := make(chan struct{})
	notifyDone := make(chan struct{})

	go func() {
		tgClient.Start(workCtx)
		close(tgDone)
	}()

	go func() {
		notifier.Run(workCtx)
		close(notifyDone)
	}()

	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelWork()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	for _, done := range []chan struct{}{tgDone, notifyDone} {
		select {
		case <-done:
		case <-waitCtx.Done():
			logger.WithField("event", "worker_shutdown_timeout").Warn("timed out waiting for workers to stop")
		}
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
