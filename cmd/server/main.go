package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/edupulse/notify/internal/api"
	"github.com/edupulse/notify/internal/cache"
	"github.com/edupulse/notify/internal/config"
	"github.com/edupulse/notify/internal/db"
	"github.com/edupulse/notify/internal/domain"
	"github.com/edupulse/notify/internal/health"
	"github.com/edupulse/notify/internal/metrics"
	"github.com/edupulse/notify/internal/provider"
	"github.com/edupulse/notify/internal/queue"
	"github.com/edupulse/notify/internal/ratelimit"
	"github.com/edupulse/notify/internal/reminder"
	"github.com/edupulse/notify/internal/repository"
	"github.com/edupulse/notify/internal/scheduler"
	"github.com/edupulse/notify/internal/source"
	"github.com/edupulse/notify/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- counter store ----
	store, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer store.Close()

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.New()
	q.OnDrop = func(item queue.Item, err error) {
		logger.Warn("delayed enqueue dropped",
			zap.String("notification_id", item.NotificationID), zap.Error(err))
	}
	repo := repository.NewPgNotificationRepository(pool)
	ledger := repository.NewPgReminderRepository(pool)
	src := source.NewPgSource(pool)

	emailSender, err := provider.NewEmailSender(provider.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, cfg.SMTPTimeout)
	if err != nil {
		logger.Fatal("failed to configure email sender", zap.Error(err))
	}
	registry := provider.NewRegistry(
		provider.NewWhatsAppSender(cfg.WhatsAppBaseURL, cfg.WhatsAppToken, cfg.DefaultCountryCode, cfg.WhatsAppTimeout),
		emailSender,
	)

	channelLimiters := ratelimit.NewChannelLimiters(cfg.ChannelRate)
	recipientLimiter := ratelimit.NewRecipientLimiter(store, cfg.RecipientLimit, cfg.RecipientWindow)
	monitor := health.NewMonitor(store, cfg.HealthWindow, q.Size)

	// ---- worker pool ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onSent, onFailed := m.WorkerHooks()
	workers := worker.NewPool(cfg.Workers, worker.Deps{
		Queue:           q,
		Repo:            repo,
		Registry:        registry,
		Limiter:         channelLimiters,
		Monitor:         monitor,
		OptOuts:         store,
		AttemptBackoff:  cfg.AttemptBackoff,
		DispatchTimeout: cfg.DispatchTimeout,
		Hooks:           worker.MetricHooks{OnSent: onSent, OnFailed: onFailed},
	}, logger)
	workers.Start(workerCtx)

	// ---- scheduler ----
	sched := scheduler.New(repo, q, scheduler.Config{
		Interval:        cfg.SchedulerInterval,
		SweepTimeout:    cfg.SweepTimeout,
		ScheduledBatch:  cfg.ScheduledBatch,
		RetryBatch:      cfg.RetryBatch,
		RetryDelay:      cfg.RetryDelay,
		BackoffBase:     cfg.BackoffBase,
		JitterMax:       cfg.JitterMax,
		DispatchTimeout: cfg.DispatchTimeout,
		StalledBatch:    cfg.StalledBatch,
		RequeueTimeout:  cfg.RequeueTimeout,
	}, logger)
	go sched.Run(workerCtx)

	// ---- reminder engine ----
	engine := reminder.NewEngine(src, ledger, repo, q, recipientLimiter, reminder.Config{
		Horizon:        cfg.ReminderHorizon,
		Lookahead:      cfg.ReminderLookahead,
		BirthdayWindow: cfg.BirthdayWindow,
	}, reminder.Hooks{
		OnOutcome: func(status domain.ReminderStatus) {
			m.RemindersProcessed.WithLabelValues(string(status)).Inc()
		},
	}, logger)
	go runReminderLoop(workerCtx, engine, cfg.SchedulerInterval, logger)

	// ---- queue depth gauges ----
	go observeQueue(workerCtx, q, m)

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Repo:     repo,
		Queue:    q,
		Engine:   engine,
		Limiter:  recipientLimiter,
		Monitor:  monitor,
		OptOuts:  store,
		Registry: reg,
		OnReceipt: func(receiptType string) {
			m.ReceiptsReceived.WithLabelValues(receiptType).Inc()
		},
	}, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all background goroutines to stop.
	cancelWorkers()

	// 3. Wait for in-flight workers to finish their current message.
	workers.Wait()

	logger.Info("server stopped cleanly")
}

// runReminderLoop runs the reminder engine on the scheduler cadence. The
// processed-reminder ledger makes overlapping runs across instances safe.
func runReminderLoop(ctx context.Context, engine *reminder.Engine, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.Run(ctx, false); err != nil {
				logger.Error("reminder run failed", zap.Error(err))
			}
		}
	}
}

// observeQueue copies queue depths into the Prometheus gauges once a second.
func observeQueue(ctx context.Context, q *queue.PriorityQueue, m *metrics.Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			high, normal, low, cleanup := q.Depths()
			m.ObserveQueue(high, normal, low, cleanup)
		}
	}
}
