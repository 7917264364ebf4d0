package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-booking/config"
	deliveryHttp "clinic-booking/internal/delivery/http"
	"clinic-booking/internal/delivery/http/handler"
	"clinic-booking/internal/delivery/http/middleware"
	"clinic-booking/internal/infrastructure/cache"
	"clinic-booking/internal/infrastructure/database"
	"clinic-booking/internal/observability/metrics"
	"clinic-booking/internal/repository"
	"clinic-booking/internal/service"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Dispatcher  service.NotificationDispatcher
	Server      *http.Server
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Setup logger
	log := setupLogger(cfg.Log)
	app.Log = log
	log.Info("Configuration loaded successfully")

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	log.Info("Database connected successfully")

	// Redis backs the slot lock and the notification queue; skip it when neither is on
	if cfg.Booking.SlotLockEnabled || cfg.Notification.Driver == config.NotificationDriverRedis {
		redisClient, err := cache.NewRedisClient(cfg.Redis, log)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		app.RedisClient = redisClient
	}

	// Initialize all layers
	app.initializeServer()

	return app, nil
}

// setupLogger configures the logrus logger
func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}

// initializeServer creates and configures the HTTP server
func (app *App) initializeServer() {
	cfg, log, db := app.Config, app.Log, app.DB

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize repositories
	doctorProfileRepo := repository.NewDoctorProfileRepository()
	availabilityRepo := repository.NewAvailabilityRepository()
	blockedSlotRepo := repository.NewBlockedSlotRepository()
	consultationTypeRepo := repository.NewConsultationTypeRepository()
	rulesRepo := repository.NewAppointmentRulesRepository()
	patientRepo := repository.NewPatientRepository()
	appointmentRepo := repository.NewAppointmentRepository()
	auditLogRepo := repository.NewAuditLogRepository()

	// Initialize services
	transactor := database.NewTransactor(db, cfg.Tx)
	auditService := service.NewAuditService(log, auditLogRepo)

	slotLock := service.NewNoopSlotLockService()
	if cfg.Booking.SlotLockEnabled {
		slotLock = service.NewRedisSlotLockService(app.RedisClient, log, cfg.Booking.SlotLockTTL, cfg.Tx.LockTimeout)
	}

	var notifier service.Notifier = service.NewLogNotifier(log)
	if cfg.Notification.Driver == config.NotificationDriverRedis {
		notifier = service.NewRedisQueueNotifier(app.RedisClient, cfg.Notification.QueueKey)
	}
	app.Dispatcher = service.NewNotificationDispatcher(notifier, log, bookingMetrics,
		cfg.Notification.Workers, cfg.Notification.BufferSize, cfg.Notification.SendTimeout)

	// Initialize usecases
	defaultLoc := cfg.Location()
	slotUsecase := usecase.NewSlotUsecase(db, log, cfg.Booking, defaultLoc,
		doctorProfileRepo, availabilityRepo, blockedSlotRepo, consultationTypeRepo, rulesRepo, appointmentRepo)
	bookingUsecase := usecase.NewBookingUsecase(db, log, defaultLoc, transactor, slotUsecase, slotLock, auditService, app.Dispatcher, bookingMetrics,
		doctorProfileRepo, consultationTypeRepo, rulesRepo, blockedSlotRepo, patientRepo, appointmentRepo)
	appointmentUsecase := usecase.NewAppointmentUsecase(db, log, defaultLoc, transactor, slotUsecase, slotLock, auditService, app.Dispatcher, bookingMetrics,
		rulesRepo, blockedSlotRepo, appointmentRepo)

	// Initialize handlers
	availabilityHandler := handler.NewAvailabilityHandler(slotUsecase, customValidator)
	bookingHandler := handler.NewBookingHandler(bookingUsecase, customValidator)
	appointmentHandler := handler.NewAppointmentHandler(appointmentUsecase, customValidator)

	// Initialize middleware
	loggingMiddleware := middleware.NewLoggingMiddleware(log)
	corsMiddleware := middleware.NewCORSMiddleware()

	// Initialize router
	router := deliveryHttp.NewRouter(availabilityHandler, bookingHandler, appointmentHandler,
		loggingMiddleware, corsMiddleware, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	httpRouter := router.Setup()

	// Create server
	app.Server = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.App.Port),
		Handler:           httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() {
	// Start server in goroutine
	go func() {
		app.Log.Infof("Server starting on port %s", app.Config.App.Port)
		app.Log.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Log.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		app.Log.Errorf("Server forced to shutdown: %v", err)
	}

	// Close connections
	app.Close()

	app.Log.Info("Server shutdown complete")
}

// Close drains pending notifications, then closes database and Redis connections.
// Notifications go first because the Redis notifier still needs its client.
func (app *App) Close() {
	if app.Dispatcher != nil {
		app.Dispatcher.Stop()
	}

	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
