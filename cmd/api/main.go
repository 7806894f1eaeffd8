package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"scams/internal/api"
	"scams/internal/config"
	"scams/internal/crypto"
	"scams/internal/database"
	"scams/internal/domain"
	"scams/internal/events"
	"scams/internal/logging"
	"scams/internal/metrics"
	"scams/internal/repository"
	"scams/internal/service"
	"scams/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	roomCacheTTL     = 5 * time.Minute
	reminderInterval = time.Minute
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

	loc, err := cfg.Booking.Location()
	if err != nil {
		return fmt.Errorf("booking timezone: %w", err)
	}
	now := func() time.Time { return time.Now().In(loc) }

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	sessionTTL := time.Duration(cfg.API.Session.TTLSeconds) * time.Second
	memorySessions := repository.NewMemorySessionStore(sessionTTL)
	var (
		sessions domain.SessionStore = memorySessions
		locker   domain.RoomLocker   = repository.NewMemoryRoomLocker()
		cache    domain.RoomCache
	)
	if redisClient != nil {
		sessions = repository.NewFailoverSessionStore(repository.NewRedisSessionStore(redisClient, sessionTTL), memorySessions, &logger)
		locker = repository.NewRedisRoomLocker(redisClient)
		cache = repository.NewRedisRoomCache(redisClient, roomCacheTTL)
	}

	bus := events.NewEventBus()
	busLogger := logging.Component(&logger, "events")
	bus.OnError(func(e *events.Event, err error) {
		busLogger.Error().Err(err).Str("event_type", e.Type).Msg("event handler failed")
	})

	workerLogger := logging.Component(&logger, "worker")
	taskWorker := worker.NewTaskWorker(db, redisClient, worker.RetryPolicy{MaxRetries: cfg.Worker.MaxRetries}, &workerLogger)
	taskWorker.Handle(worker.TaskNotify, worker.NotifyHandler(db))
	worker.SubscribeNotifications(bus, taskWorker, &workerLogger)

	if cfg.Kafka.Enabled() {
		kafkaLogger := logging.Component(&logger, "kafka")
		publisher := events.NewKafkaPublisher(cfg.Kafka, &kafkaLogger)
		defer func() { _ = publisher.Close() }()
		taskWorker.Handle(worker.TaskPublish, worker.PublishHandler(publisher))
		worker.ForwardEvents(bus, taskWorker, events.BookingEvents, &workerLogger)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publishing enabled")
	}

	bookingLogger := logging.Component(&logger, "bookings")
	roomLogger := logging.Component(&logger, "rooms")
	userLogger := logging.Component(&logger, "users")
	maintenanceLogger := logging.Component(&logger, "maintenance")
	bookings := service.NewBookingService(db, locker, bus, cfg.Booking, now, &bookingLogger)
	svc := api.Services{
		Bookings:      bookings,
		Rooms:         service.NewRoomService(db, cache, bus, cfg.Booking, &roomLogger),
		Users:         service.NewUserService(db, sessions, cfg, &userLogger),
		Maintenance:   service.NewMaintenanceService(db, cache, &maintenanceLogger),
		Notifications: service.NewNotificationService(db),
		Analytics:     service.NewAnalyticsService(db, cfg.Booking, now),
		Health:        db.PingContext,
	}

	reminder, err := worker.NewReminder(db, taskWorker, cfg.Worker.ReminderTime, now, &workerLogger)
	if err != nil {
		return fmt.Errorf("reminder time: %w", err)
	}
	sweeper := worker.NewSweeper(db, bus, time.Duration(cfg.Worker.SweepIntervalSec)*time.Second, now, &workerLogger)

	var wg sync.WaitGroup
	background := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	background(func() { taskWorker.Start(ctx, cfg.Worker.Workers) })
	background(func() { sweeper.Start(ctx) })
	background(func() { reminder.Start(ctx, reminderInterval) })
	if cfg.Backup.Enabled {
		backupLogger := logging.Component(&logger, "backup")
		backups := database.NewBackupService(db, cfg.Backup, &backupLogger)
		background(func() { backups.Start(ctx) })
	}
	startMetrics(ctx, cfg, &logger)

	apiLogger := logging.Component(&logger, "http")
	httpServer := api.NewHTTPServer(cfg.API, svc, bus, &apiLogger)
	err = serve(ctx, httpServer, cfg, &logger)

	stop()
	wg.Wait()
	logger.Info().Msg("API server stopped")
	return err
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

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	key, err := cfg.Security.Key()
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.New(key)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	db.SetCipher(cipher)
	if !cipher.Enabled() {
		logger.Warn().Msg("security.aes_key is empty, booking details are stored in plaintext")
	}

	roomsPath := os.Getenv("ROOMS_PATH")
	if roomsPath == "" {
		roomsPath = "configs/rooms.yaml"
	}
	rooms, err := config.LoadRooms(roomsPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn().Str("rooms_path", roomsPath).Msg("room fixtures not found, skipping seed")
	case err != nil:
		_ = db.Close()
		return nil, err
	default:
		n, err := db.SeedRooms(ctx, rooms)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed rooms: %w", err)
		}
		if n > 0 {
			logger.Info().Int("rooms", n).Msg("seeded rooms")
		}
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
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

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	return serveErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
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
