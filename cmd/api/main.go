package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trialdesk/internal/api"
	"trialdesk/internal/config"
	"trialdesk/internal/database"
	"trialdesk/internal/domain"
	"trialdesk/internal/events"
	"trialdesk/internal/export"
	"trialdesk/internal/logging"
	"trialdesk/internal/messaging"
	"trialdesk/internal/metrics"
	"trialdesk/internal/models"
	"trialdesk/internal/payments"
	"trialdesk/internal/repository"
	"trialdesk/internal/service"
	"trialdesk/internal/timezone"
	"trialdesk/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	teachers, packages, err := loadCatalog(&logger)
	if err != nil {
		return err
	}
	cfg.Teachers = teachers
	cfg.Packages = packages

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	tz, err := timezone.NewConverter(cfg.ZoneAliases)
	if err != nil {
		logger.Error().Err(err).Msg("init timezone converter")
		return err
	}
	refZone, err := time.LoadLocation(cfg.Booking.ReferenceZone)
	if err != nil {
		logger.Error().Err(err).Str("zone", cfg.Booking.ReferenceZone).Msg("load reference zone")
		return err
	}

	db, err := initDatabase(cfg, refZone, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	flowRepo := initFlowRepository(redisClient, &logger)
	eventBus := events.NewEventBus()

	messenger := initMessenger(cfg, &logger)
	retryPolicy := worker.RetryPolicy{
		MaxRetries:   cfg.Worker.MaxRetries,
		InitialDelay: time.Duration(cfg.Worker.InitialDelaySec) * time.Second,
	}
	notifyWorker := worker.NewNotifyWorker(messenger, redisClient, retryPolicy, &logger)
	go notifyWorker.Start(ctx)

	subscribeStatusEvents(ctx, eventBus, db, notifyWorker, &logger)

	provider := initPaymentProvider(cfg, &logger)

	assigner := service.NewAssigner(db, &logger)
	searchService := service.NewSearchService(db, tz, cfg.Booking.ReferenceZone, &logger)
	bookingService := service.NewBookingService(db, assigner, tz, cfg.Booking.ReferenceZone, eventBus, notifyWorker, &logger)
	lifecycleService := service.NewLifecycleService(db, eventBus, &logger)
	paymentService := service.NewPaymentService(flowRepo, db, cfg.Packages, provider, lifecycleService, eventBus, &logger)
	followUpService := service.NewFollowUpService(db, lifecycleService, eventBus, &logger)

	startMetrics(ctx, cfg, &logger)

	var exporter *export.Exporter
	if cfg.Exports.Path != "" {
		exporter = export.NewExporter(db, cfg.Exports.Path, logging.Component(&logger, "export"))
	}

	httpServer := api.NewHTTPServer(
		cfg.API, db, searchService, bookingService,
		lifecycleService, paymentService, followUpService,
		exporter, logging.Component(&logger, "http"),
	)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadCatalog reads the teacher roster and package catalog. Kept in a
// separate file so sales can edit it without touching service config.
func loadCatalog(logger *zerolog.Logger) ([]models.Teacher, []models.Package, error) {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("read catalog")
		return nil, nil, err
	}

	var catalog struct {
		Teachers []models.Teacher `yaml:"teachers"`
		Packages []models.Package `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("parse catalog")
		return nil, nil, err
	}

	if err := config.ValidateTeachers(catalog.Teachers); err != nil {
		logger.Error().Err(err).Msg("teachers validation failed")
		return nil, nil, err
	}
	if err := config.ValidatePackages(catalog.Packages); err != nil {
		logger.Error().Err(err).Msg("packages validation failed")
		return nil, nil, err
	}

	return catalog.Teachers, catalog.Packages, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("create exports directory")
			return err
		}
	}
	return nil
}

func initDatabase(cfg *config.Config, refZone *time.Location, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, refZone, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	db.SetTeachers(cfg.Teachers)
	for i := range cfg.Teachers {
		if err := db.UpsertTeacher(context.Background(), &cfg.Teachers[i]); err != nil {
			logger.Error().Err(err).Int64("teacher_id", cfg.Teachers[i].ID).Msg("seed teacher")
			return nil, err
		}
	}
	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initFlowRepository(redisClient *redis.Client, logger *zerolog.Logger) domain.FlowRepository {
	fallback := repository.NewMemoryFlowRepository(models.DefaultFlowTTL)
	if redisClient == nil {
		return fallback
	}
	primary := repository.NewRedisFlowRepository(redisClient, models.DefaultFlowTTL)
	return repository.NewFailoverFlowRepository(primary, fallback, logger)
}

func initMessenger(cfg *config.Config, logger *zerolog.Logger) domain.Messenger {
	if cfg.Messaging.WebhookURL == "" {
		logger.Warn().Msg("messaging webhook not configured, messages are logged only")
		return messaging.NewLogMessenger(logging.Component(logger, "messenger"))
	}
	return messaging.NewWebhookMessenger(cfg.Messaging, logging.Component(logger, "messenger"))
}

func initPaymentProvider(cfg *config.Config, logger *zerolog.Logger) domain.PaymentProvider {
	if cfg.Payments.BaseURL == "" {
		logger.Warn().Msg("payment gateway not configured, using local provider")
		return payments.NewLocalProvider(logging.Component(logger, "payments"))
	}
	return payments.NewHTTPProvider(cfg.Payments, logging.Component(logger, "payments"))
}

// subscribeStatusEvents forwards lifecycle transitions to the notify queue so
// the student hears about every status change.
func subscribeStatusEvents(
	ctx context.Context,
	bus *events.EventBus,
	db *database.DB,
	notifyWorker *worker.NotifyWorker,
	logger *zerolog.Logger,
) {
	bus.Subscribe(events.EventStatusChanged, func(ev *events.Event) error {
		var payload events.StatusEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		booking, err := db.GetBooking(ctx, payload.BookingID)
		if err != nil {
			logger.Error().Err(err).Int64("booking_id", payload.BookingID).Msg("event bus: load booking")
			return nil
		}
		if booking.Phone == "" {
			return nil
		}

		task := models.NotifyTask{
			Kind:      "status-update",
			BookingID: booking.ID,
			Phone:     booking.Phone,
			Message:   fmt.Sprintf("Hi %s! Your trial lesson status is now: %s", booking.StudentName, payload.To),
		}
		if err := notifyWorker.Enqueue(ctx, task); err != nil {
			logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("event bus: enqueue notification")
		}
		return nil
	})
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			logger.Warn().Msg("HTTP API disabled in config")
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}
