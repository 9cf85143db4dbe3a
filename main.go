package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/config"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/errorlog"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/handler"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/middleware"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/settings"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Server.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.Logging.Format == "console" || cfg.Logging.Format == "json" {
		zcfg.Encoding = cfg.Logging.Format
	}

	return zcfg.Build()
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(min(cfg.MaxIdleConns, cfg.MaxOpenConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.Int("forward_days", cfg.Reminders.ForwardDays),
	)

	ctx := context.Background()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Successfully connected to database")

	if err := repository.Migrate(ctx, pool); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reminderMetrics, err := metrics.NewReminderMetrics(registry)
	if err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	clock := clockwork.NewRealClock()

	// Repositories
	medicationRepo := repository.NewMedicationRepository(pool, logger)
	doseRepo := repository.NewDoseRepository(pool, clock, logger)
	mappingRepo := repository.NewMappingRepository(pool, logger)
	episodeRepo := repository.NewEpisodeRepository(pool, cfg.DailyCheckin.Timezone, logger)
	settingsRepo := repository.NewSettingsRepository(pool, logger)

	errorLog := errorlog.NewLogger(pool, logger)
	errorReporter := errorlog.NewAsync(errorLog, logger)

	settingsProvider := settings.NewProvider(settingsRepo, settings.Defaults{
		FollowUpEnabled:      cfg.Reminders.DefaultFollowUpDelay > 0,
		FollowUpDelay:        cfg.Reminders.DefaultFollowUpDelay,
		TimeSensitiveEnabled: true,
	}, cfg.Reminders.SettingsCacheTTL, logger)

	// Notification scheduler and engine
	presenters := notify.Presenters{notify.NewLogPresenter(logger)}
	if len(cfg.Push.URLs) > 0 {
		push, err := notify.NewPushPresenter(cfg.Push.URLs, cfg.Push.Timeout, logger)
		if err != nil {
			logger.Fatal("Failed to configure push delivery", zap.Error(err))
		}
		presenters = append(presenters, push)
		logger.Info("Push delivery enabled", zap.Int("targets", len(cfg.Push.URLs)))
	}

	notifier, err := notify.NewLocalScheduler(clock, presenters, logger)
	if err != nil {
		logger.Fatal("Failed to create notification scheduler", zap.Error(err))
	}

	scheduler := service.NewScheduler(
		medicationRepo,
		mappingRepo,
		notifier,
		settingsRepo,
		settingsProvider,
		service.SchedulerOptions{
			ForwardDays:   cfg.Reminders.ForwardDays,
			SnoozeMinutes: cfg.Reminders.SnoozeMinutes,
			DailyCheckin: service.DailyCheckinOptions{
				Enabled:  cfg.DailyCheckin.Enabled,
				Time:     cfg.DailyCheckin.Time,
				Timezone: cfg.DailyCheckin.Timezone,
			},
		},
		clock,
		reminderMetrics,
		logger,
	)

	oracle := service.NewOracle(medicationRepo, doseRepo, episodeRepo, notifier, errorReporter, reminderMetrics, logger)
	actions := service.NewActionHandlers(medicationRepo, doseRepo, notifier, clock, logger)
	followUps := service.NewFollowUpEngine(notifier, settingsProvider, clock, reminderMetrics, logger)
	dispatcher := service.NewDispatcher(
		actions,
		followUps,
		episodeRepo,
		notifier,
		errorReporter,
		service.DispatcherOptions{
			SnoozeMinutes:      cfg.Reminders.SnoozeMinutes,
			RemindLaterMinutes: cfg.Reminders.RemindLaterMinutes,
		},
		clock,
		reminderMetrics,
		logger,
	)
	engine := service.NewEngine(oracle, mappingRepo, followUps, dispatcher, logger)
	reconciler := service.NewReconciler(mappingRepo, notifier, reminderMetrics, logger)
	medicationService := service.NewMedicationService(medicationRepo, scheduler, episodeRepo, cfg.DailyCheckin.Timezone, clock, logger)

	notifier.SetListener(engine)
	notifier.Start()

	if err := scheduler.RegisterCategories(ctx); err != nil {
		logger.Fatal("Failed to register notification categories", zap.Error(err))
	}
	if err := scheduler.RescheduleAll(ctx); err != nil {
		logger.Error("Initial scheduling failed", zap.Error(err))
	}

	// Keep the forward window topped up as days pass
	jobs, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create refresh scheduler", zap.Error(err))
	}
	_, err = jobs.NewJob(
		gocron.DurationJob(cfg.Reminders.RefreshInterval),
		gocron.NewTask(func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := scheduler.Refresh(refreshCtx); err != nil {
				logger.Error("Scheduled refresh failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Fatal("Failed to schedule refresh job", zap.Error(err))
	}
	jobs.Start()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RequestLoggingMiddleware(logger))
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	swagger, err := handler.GetSwagger(ctx)
	if err != nil {
		logger.Fatal("Failed to load OpenAPI document", zap.Error(err))
	}
	validator, err := middleware.OpenAPIValidationMiddleware(swagger, logger)
	if err != nil {
		logger.Fatal("Failed to create request validator", zap.Error(err))
	}
	r.Use(validator)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	handler.RegisterRoutes(r, handler.Handlers{
		Health:        handler.NewHealthHandler(pool, logger),
		Medications:   handler.NewMedicationHandler(medicationService, settingsProvider, logger),
		History:       handler.NewHistoryHandler(medicationService, doseRepo, episodeRepo, logger),
		Notifications: handler.NewNotificationHandler(scheduler, reconciler, engine, errorLog, logger),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := jobs.Shutdown(); err != nil {
		logger.Error("Failed to stop refresh scheduler", zap.Error(err))
	}
	// Pending notifications are rebuilt from the database on next start
	if err := notifier.Shutdown(); err != nil {
		logger.Error("Failed to stop notification scheduler", zap.Error(err))
	}

	errorReporter.Wait()
	pool.Close()

	logger.Info("Server exited")
}
